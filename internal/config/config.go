// Package config handles configuration loading for the scquery analyzer.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the analyzer configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Charts   ChartsConfig   `yaml:"charts"`
	Server   ServerConfig   `yaml:"server"`
	Results  ResultsConfig  `yaml:"results"`
}

// AnalysisConfig contains the neighbor-analysis parameters.
type AnalysisConfig struct {
	TopWindow           int          `yaml:"top_window"`
	VoteWindow          int          `yaml:"vote_window"`
	EnrichmentThreshold int          `yaml:"enrichment_threshold"`
	TargetA             TargetConfig `yaml:"target_a"`
	TargetB             TargetConfig `yaml:"target_b"`
	ControlMarker       string       `yaml:"control_marker"`
	DiseaseMarker       string       `yaml:"disease_marker"`
	Workers             int          `yaml:"workers"`
}

// TargetConfig names a pair of ontology terms counted together for
// enrichment detection.
type TargetConfig struct {
	Name   string   `yaml:"name"`
	Labels []string `yaml:"labels"`
}

// OutputConfig contains artifact output settings.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Prefix    string `yaml:"prefix"`
	Overwrite *bool  `yaml:"overwrite"`
}

// ChartsConfig contains chart rendering settings.
type ChartsConfig struct {
	Width      int               `yaml:"width"`
	Height     int               `yaml:"height"`
	Classes    map[string]string `yaml:"classes"`
	ClassOrder []string          `yaml:"class_order"`
}

// ServerConfig contains settings for the review server.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ResultsConfig contains run persistence settings.
type ResultsConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Load reads configuration from a YAML file. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration. The analysis constants
// reproduce the legacy mouse brain study: top-5/top-100 windows, enrichment
// threshold 70, brain/cortex vs bone-marrow/osteocyte target pairs.
func DefaultConfig() *Config {
	overwrite := true
	return &Config{
		Analysis: AnalysisConfig{
			TopWindow:           5,
			VoteWindow:          100,
			EnrichmentThreshold: 70,
			TargetA: TargetConfig{
				Name:   "brain/cortex",
				Labels: []string{"UBERON:0000955 brain", "UBERON:0001851 cortex"},
			},
			TargetB: TargetConfig{
				Name:   "bone marrow/osteocyte",
				Labels: []string{"CL:0002092 bone marrow cell", "CL:0000137 osteocyte"},
			},
			ControlMarker: "control",
			DiseaseMarker: "disease",
			Workers:       0,
		},
		Output: OutputConfig{
			Prefix:    "brain_analysis",
			Overwrite: &overwrite,
		},
		Charts: ChartsConfig{
			Width:  900,
			Height: 700,
			Classes: map[string]string{
				"control_3m":    "#66ffff",
				"control_3m_1w": "#6699ff",
				"control_3m_2w": "#6600ff",
				"control_4m_2w": "#ff00cc",
				"disease_3m":    "#33ff00",
				"disease_3m_1w": "#ffff00",
				"disease_3m_2w": "#ff9900",
				"disease_4m_2w": "#ff0000",
			},
			ClassOrder: []string{
				"control_3m", "control_3m_1w", "control_3m_2w", "control_4m_2w",
				"disease_3m", "disease_3m_1w", "disease_3m_2w", "disease_4m_2w",
			},
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Results: ResultsConfig{
			SQLitePath: "./data/runs.sqlite",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Analysis.TopWindow == 0 {
		cfg.Analysis.TopWindow = defaults.Analysis.TopWindow
	}
	if cfg.Analysis.VoteWindow == 0 {
		cfg.Analysis.VoteWindow = defaults.Analysis.VoteWindow
	}
	if cfg.Analysis.EnrichmentThreshold == 0 {
		cfg.Analysis.EnrichmentThreshold = defaults.Analysis.EnrichmentThreshold
	}
	if len(cfg.Analysis.TargetA.Labels) == 0 {
		cfg.Analysis.TargetA = defaults.Analysis.TargetA
	}
	if len(cfg.Analysis.TargetB.Labels) == 0 {
		cfg.Analysis.TargetB = defaults.Analysis.TargetB
	}
	if cfg.Analysis.ControlMarker == "" {
		cfg.Analysis.ControlMarker = defaults.Analysis.ControlMarker
	}
	if cfg.Analysis.DiseaseMarker == "" {
		cfg.Analysis.DiseaseMarker = defaults.Analysis.DiseaseMarker
	}
	if cfg.Output.Prefix == "" {
		cfg.Output.Prefix = defaults.Output.Prefix
	}
	if cfg.Output.Overwrite == nil {
		cfg.Output.Overwrite = defaults.Output.Overwrite
	}
	if cfg.Charts.Width == 0 {
		cfg.Charts.Width = defaults.Charts.Width
	}
	if cfg.Charts.Height == 0 {
		cfg.Charts.Height = defaults.Charts.Height
	}
	if len(cfg.Charts.Classes) == 0 {
		cfg.Charts.Classes = defaults.Charts.Classes
		cfg.Charts.ClassOrder = defaults.Charts.ClassOrder
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Results.SQLitePath == "" {
		cfg.Results.SQLitePath = defaults.Results.SQLitePath
	}
}
