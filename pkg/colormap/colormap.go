// Package colormap provides color assignment for analysis charts.
package colormap

import (
	"fmt"
	"image/color"
	"sort"
)

// Categorical is the default palette for labels without a configured color.
// 20 distinct colors, indexed with wrap-around.
var Categorical = []color.RGBA{
	{31, 119, 180, 255},  // Blue
	{255, 127, 14, 255},  // Orange
	{44, 160, 44, 255},   // Green
	{214, 39, 40, 255},   // Red
	{148, 103, 189, 255}, // Purple
	{140, 86, 75, 255},   // Brown
	{227, 119, 194, 255}, // Pink
	{127, 127, 127, 255}, // Gray
	{188, 189, 34, 255},  // Olive
	{23, 190, 207, 255},  // Cyan
	{174, 199, 232, 255}, // Light blue
	{255, 187, 120, 255}, // Light orange
	{152, 223, 138, 255}, // Light green
	{255, 152, 150, 255}, // Light red
	{197, 176, 213, 255}, // Light purple
	{196, 156, 148, 255}, // Light brown
	{247, 182, 210, 255}, // Light pink
	{199, 199, 199, 255}, // Light gray
	{219, 219, 141, 255}, // Light olive
	{158, 218, 229, 255}, // Light cyan
}

// AtIndex returns the categorical color at index i (wraps around).
func AtIndex(i int) color.RGBA {
	if i < 0 {
		i = -i
	}
	return Categorical[i%len(Categorical)]
}

// Cohort colors match the legacy convention: control blue, disease red.
var (
	ControlColor = color.RGBA{31, 119, 180, 255}
	DiseaseColor = color.RGBA{214, 39, 40, 255}
)

// ClassPalette is an immutable mapping from class name to color, built once
// from configuration and passed to the reporting layer. Classes without a
// configured color fall back to the categorical palette deterministically.
type ClassPalette struct {
	order  []string
	colors map[string]color.RGBA
}

// NewClassPalette builds a palette from hex color strings keyed by class name.
// order fixes the legend ordering; classes present in colors but absent from
// order are appended alphabetically.
func NewClassPalette(colors map[string]string, order []string) (*ClassPalette, error) {
	p := &ClassPalette{colors: make(map[string]color.RGBA, len(colors))}

	seen := make(map[string]bool, len(colors))
	for _, class := range order {
		hex, ok := colors[class]
		if !ok {
			return nil, fmt.Errorf("colormap: class %q in order has no color", class)
		}
		c, err := ParseHex(hex)
		if err != nil {
			return nil, fmt.Errorf("colormap: class %q: %w", class, err)
		}
		p.order = append(p.order, class)
		p.colors[class] = c
		seen[class] = true
	}

	var rest []string
	for class := range colors {
		if !seen[class] {
			rest = append(rest, class)
		}
	}
	sort.Strings(rest)
	for _, class := range rest {
		c, err := ParseHex(colors[class])
		if err != nil {
			return nil, fmt.Errorf("colormap: class %q: %w", class, err)
		}
		p.order = append(p.order, class)
		p.colors[class] = c
	}

	return p, nil
}

// Color returns the color for a class, falling back to the categorical
// palette keyed by a stable hash of the name for unknown classes.
func (p *ClassPalette) Color(class string) color.RGBA {
	if c, ok := p.colors[class]; ok {
		return c
	}
	h := 0
	for _, r := range class {
		h = h*31 + int(r)
	}
	return AtIndex(h)
}

// Classes returns the legend ordering.
func (p *ClassPalette) Classes() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// ParseHex parses a "#rrggbb" hex color.
func ParseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
