// Package main is the entry point for the scquery analyzer.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/cellatlas/scquery/internal/analysis"
	"github.com/cellatlas/scquery/internal/api"
	"github.com/cellatlas/scquery/internal/config"
	"github.com/cellatlas/scquery/internal/data"
	"github.com/cellatlas/scquery/internal/model"
	"github.com/cellatlas/scquery/internal/report"
	"github.com/cellatlas/scquery/internal/resultstore"
	"github.com/cellatlas/scquery/pkg/colormap"
)

func main() {
	root := &cobra.Command{
		Use:   "scquery",
		Short: "Compare query cell embeddings against a reference cell atlas",
	}
	root.AddCommand(newAnalyzeCommand(), newServeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAnalyzeCommand() *cobra.Command {
	var configPath, outDir string

	cmd := &cobra.Command{
		Use:   "analyze <query-store> <database-store> <model-dir> <baseline-model-dir>",
		Short: "Run the neighbor analysis of query cells against the reference database",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			runAnalyze(configPath, outDir, args[0], args[1], args[2], args[3])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/scquery.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: timestamped directory under the configured prefix)")
	return cmd
}

func runAnalyze(configPath, outDir, queryPath, dbPath, modelDir, baselineDir string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	overwrite := *cfg.Output.Overwrite

	queryStore, err := data.Open(queryPath)
	if err != nil {
		log.Fatalf("Failed to open query store: %v", err)
	}
	defer queryStore.Close()

	dbStore, err := data.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database store: %v", err)
	}
	defer dbStore.Close()

	log.Printf("Query: %s (%d cells x %d genes)", queryPath, queryStore.NumRows(), queryStore.NumCols())
	log.Printf("Database: %s (%d cells x %d genes)", dbPath, dbStore.NumRows(), dbStore.NumCols())

	encoder, err := model.Load(modelDir)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	baseline, err := model.Load(baselineDir)
	if err != nil {
		log.Fatalf("Failed to load baseline model: %v", err)
	}
	log.Printf("Model: %s (%d -> %d), baseline: %s (%d -> %d)",
		encoder.Name(), encoder.InputDim(), encoder.OutputDim(),
		baseline.Name(), baseline.InputDim(), baseline.OutputDim())

	queryX, err := queryStore.ExpressionMatrix()
	if err != nil {
		log.Fatalf("Failed to read query expression matrix: %v", err)
	}
	dbX, err := dbStore.ExpressionMatrix()
	if err != nil {
		log.Fatalf("Failed to read database expression matrix: %v", err)
	}

	queryReduced, err := encoder.Reduce(queryX)
	if err != nil {
		log.Fatalf("Failed to reduce query data: %v", err)
	}
	dbReduced, err := encoder.Reduce(dbX)
	if err != nil {
		log.Fatalf("Failed to reduce database data: %v", err)
	}
	queryBaseline, err := baseline.Reduce(queryX)
	if err != nil {
		log.Fatalf("Failed to reduce query data with baseline: %v", err)
	}
	dbBaseline, err := baseline.Reduce(dbX)
	if err != nil {
		log.Fatalf("Failed to reduce database data with baseline: %v", err)
	}

	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	workDir, err := report.CreateWorkingDirectory(outDir, cfg.Output.Prefix)
	if err != nil {
		log.Fatalf("Failed to create working directory: %v", err)
	}
	log.Printf("Writing artifacts to %s", workDir)

	markers := analysis.CohortMarkers{
		Control: cfg.Analysis.ControlMarker,
		Disease: cfg.Analysis.DiseaseMarker,
	}
	params := analysis.Params{
		TopWindow:  cfg.Analysis.TopWindow,
		VoteWindow: cfg.Analysis.VoteWindow,
		Targets: [2]analysis.TargetPair{
			{Name: cfg.Analysis.TargetA.Name, Labels: cfg.Analysis.TargetA.Labels},
			{Name: cfg.Analysis.TargetB.Name, Labels: cfg.Analysis.TargetB.Labels},
		},
		Markers:             markers,
		EnrichmentThreshold: cfg.Analysis.EnrichmentThreshold,
		Workers:             cfg.Analysis.Workers,
	}

	start := time.Now()
	res, err := analysis.Run(
		queryReduced, dbReduced,
		queryStore.CellIDs(), queryStore.Groups(),
		dbStore.Labels(), dbStore.CellIDs(),
		params,
	)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	log.Printf("Analyzed %d query cells against %d database cells in %v",
		len(res.Records), dbStore.NumRows(), time.Since(start).Round(time.Millisecond))
	log.Printf("Enriched queries (%s count > %d): %d",
		cfg.Analysis.TargetA.Name, cfg.Analysis.EnrichmentThreshold, len(res.Enriched))

	palette, err := colormap.NewClassPalette(cfg.Charts.Classes, cfg.Charts.ClassOrder)
	if err != nil {
		log.Fatalf("Failed to build chart palette: %v", err)
	}
	writer := &report.Writer{
		Dir:       workDir,
		Charts:    &report.Charter{Width: cfg.Charts.Width, Height: cfg.Charts.Height, Palette: palette},
		Overwrite: overwrite,
	}

	writeArtifacts(writer, res, cfg, markers, encoder.Name(), baseline.Name(),
		queryX, queryReduced, queryBaseline, dbReduced, dbBaseline, queryStore.Groups())

	if len(res.Enriched) > 0 {
		ids := make([]string, len(res.Enriched))
		for i, hit := range res.Enriched {
			ids[i] = hit.QueryID
		}
		subsetPath := filepath.Join(workDir, "enriched_cells")
		if err := queryStore.WriteSubset(subsetPath, ids, data.WriteOptions{Overwrite: overwrite}); err != nil {
			log.Fatalf("Failed to write enriched cell subset: %v", err)
		}
		log.Printf("Wrote %d enriched cells to %s", len(ids), subsetPath)
	}

	persistRun(cfg.Results.SQLitePath, res, markers, resultstore.Run{
		ID:           resultstore.NewRunID(),
		QueryPath:    queryPath,
		DatabasePath: dbPath,
		ModelName:    encoder.Name(),
		BaselineName: baseline.Name(),
		OutputDir:    workDir,
		NQueries:     queryStore.NumRows(),
		NDatabase:    dbStore.NumRows(),
		CreatedAt:    time.Now().UTC(),
	})

	log.Printf("Done")
}

func writeArtifacts(w *report.Writer, res *analysis.Result, cfg *config.Config, markers analysis.CohortMarkers,
	modelName, baselineName string, queryX, queryReduced, queryBaseline, dbReduced, dbBaseline *mat.Dense, groups []string) {

	if err := w.NearestDistanceCharts(res.Agg); err != nil {
		log.Fatalf("Failed to write nearest-distance charts: %v", err)
	}
	if err := w.TopLabelFrequencyCharts(res.Agg); err != nil {
		log.Fatalf("Failed to write top-label charts: %v", err)
	}
	if err := w.TopDistanceHistograms(res.Agg); err != nil {
		log.Fatalf("Failed to write distance histograms: %v", err)
	}
	if err := w.ClassificationCharts(res.Agg); err != nil {
		log.Fatalf("Failed to write classification charts: %v", err)
	}
	if err := w.ContingencyCharts(res); err != nil {
		log.Fatalf("Failed to write contingency charts: %v", err)
	}
	if err := w.EnrichmentArtifacts(res.Records, res.Enriched, cfg.Analysis.TargetA.Name); err != nil {
		log.Fatalf("Failed to write enrichment artifacts: %v", err)
	}

	embeddings := []struct {
		name string
		x    *mat.Dense
	}{
		{"original_query_data", queryX},
		{modelName + "_reduced", queryReduced},
		{baselineName + "_reduced", queryBaseline},
	}
	for _, e := range embeddings {
		if err := w.EmbeddingCharts(e.name, e.x, groups, markers); err != nil {
			log.Fatalf("Failed to write embedding charts for %s: %v", e.name, err)
		}
	}

	tables := []struct {
		name  string
		table analysis.Table
		pvals []float64
	}{
		{"contingency", res.Table, res.PValues},
		{"contingency_non_zero", res.TableNoZeros, res.PValuesNoZeros},
	}
	for _, t := range tables {
		if err := w.ContingencyCSV(t.name, t.table, t.pvals); err != nil {
			log.Fatalf("Failed to export %s table: %v", t.name, err)
		}
		if len(t.table.Labels) == 0 {
			continue
		}
		counts := mat.NewDense(2, len(t.table.Labels), nil)
		counts.SetRow(0, t.table.Control)
		counts.SetRow(1, t.table.Disease)
		if err := w.WriteMatrix(t.name, counts); err != nil {
			log.Fatalf("Failed to export %s matrix: %v", t.name, err)
		}
	}
	if err := w.ClassificationCSV(res.Records); err != nil {
		log.Fatalf("Failed to export classifications: %v", err)
	}

	exports := []struct {
		name string
		x    *mat.Dense
	}{
		{modelName + "_query_reduced", queryReduced},
		{modelName + "_database_reduced", dbReduced},
		{baselineName + "_query_reduced", queryBaseline},
		{baselineName + "_database_reduced", dbBaseline},
	}
	for _, e := range exports {
		if err := w.WriteMatrix(e.name, e.x); err != nil {
			log.Fatalf("Failed to export matrix %s: %v", e.name, err)
		}
	}
}

func persistRun(sqlitePath string, res *analysis.Result, markers analysis.CohortMarkers, run resultstore.Run) {
	store, err := resultstore.NewStore(sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	if err := store.CreateRun(&run); err != nil {
		log.Fatalf("Failed to persist run: %v", err)
	}

	classifications := make([]resultstore.Classification, len(res.Records))
	for i, rec := range res.Records {
		classifications[i] = resultstore.Classification{
			QueryID:      rec.QueryID,
			Group:        rec.Group,
			Cohort:       analysis.ClassifyCohort(rec.Group, markers).String(),
			Predicted:    rec.Predicted,
			MeanTop:      rec.MeanTop,
			TargetACount: rec.TargetCounts[0],
			TargetBCount: rec.TargetCounts[1],
		}
	}
	if err := store.InsertClassifications(run.ID, classifications); err != nil {
		log.Fatalf("Failed to persist classifications: %v", err)
	}

	var rows []resultstore.ContingencyRow
	for i, label := range res.Table.Labels {
		rows = append(rows, resultstore.ContingencyRow{
			Label:        label,
			ControlCount: res.Table.Control[i],
			DiseaseCount: res.Table.Disease[i],
			PValue:       res.PValues[i],
		})
	}
	for i, label := range res.TableNoZeros.Labels {
		rows = append(rows, resultstore.ContingencyRow{
			Label:        label,
			ControlCount: res.TableNoZeros.Control[i],
			DiseaseCount: res.TableNoZeros.Disease[i],
			PValue:       res.PValuesNoZeros[i],
			ZeroFiltered: true,
		})
	}
	if err := store.InsertContingency(run.ID, rows); err != nil {
		log.Fatalf("Failed to persist contingency table: %v", err)
	}

	log.Printf("Run %s persisted to %s", run.ID, sqlitePath)
}

func newServeCommand() *cobra.Command {
	var configPath, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve finished runs and their artifacts over HTTP",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(configPath, dbPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/scquery.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Run database path (overrides the configured one)")
	return cmd
}

func runServe(configPath, dbPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dbPath != "" {
		cfg.Results.SQLitePath = dbPath
	}

	store, err := resultstore.NewStore(cfg.Results.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	router := api.NewRouter(api.RouterConfig{
		Store:       store,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Serving runs from %s on port %d", cfg.Results.SQLitePath, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
}
