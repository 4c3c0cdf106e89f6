package report

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/cellatlas/scquery/internal/analysis"
	"github.com/cellatlas/scquery/pkg/colormap"
)

const (
	marginLeft   = 70.0
	marginRight  = 170.0
	marginTop    = 50.0
	marginBottom = 90.0
)

// Charter renders analysis charts as PNG files.
type Charter struct {
	Width   int
	Height  int
	Palette *colormap.ClassPalette
}

func (c *Charter) context(title string) *gg.Context {
	dc := gg.NewContext(c.Width, c.Height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, float64(c.Width)/2, marginTop/2, 0.5, 0.5)
	return dc
}

func (c *Charter) plotArea() (x, y, w, h float64) {
	return marginLeft, marginTop, float64(c.Width) - marginLeft - marginRight, float64(c.Height) - marginTop - marginBottom
}

func (c *Charter) drawAxes(dc *gg.Context) {
	x, y, w, h := c.plotArea()
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawLine(x, y+h, x+w, y+h)
	dc.DrawLine(x, y, x, y+h)
	dc.Stroke()
}

// Scatter draws a 2-D scatter colored by class, with a legend of the
// palette's class order on the right.
func (c *Charter) Scatter(path, title string, xy [][2]float64, classes []string) error {
	if len(xy) != len(classes) {
		return fmt.Errorf("report: %d points but %d classes", len(xy), len(classes))
	}

	dc := c.context(title)
	c.drawAxes(dc)

	px, py, pw, ph := c.plotArea()
	minX, maxX, minY, maxY := bounds(xy)

	for i, p := range xy {
		dc.SetColor(c.Palette.Color(classes[i]))
		dc.DrawCircle(
			px+scale(p[0], minX, maxX)*pw,
			py+ph-scale(p[1], minY, maxY)*ph,
			3,
		)
		dc.Fill()
	}

	legendY := py + 10
	for _, class := range c.Palette.Classes() {
		dc.SetColor(c.Palette.Color(class))
		dc.DrawCircle(px+pw+20, legendY, 5)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(class, px+pw+32, legendY, 0, 0.4)
		legendY += 18
	}

	dc.SetColor(color.Black)
	dc.DrawStringAnchored("component 1", px+pw/2, py+ph+30, 0.5, 0.5)
	dc.DrawStringAnchored("component 2", 20, py+ph/2, 0, 0.5)

	return dc.SavePNG(path)
}

// CohortScatter draws the same scatter consolidated to cohort colors:
// control blue, disease red; unclassified rows are skipped.
func (c *Charter) CohortScatter(path, title string, xy [][2]float64, cohorts []analysis.Cohort) error {
	if len(xy) != len(cohorts) {
		return fmt.Errorf("report: %d points but %d cohorts", len(xy), len(cohorts))
	}

	dc := c.context(title)
	c.drawAxes(dc)

	px, py, pw, ph := c.plotArea()
	minX, maxX, minY, maxY := bounds(xy)

	for i, p := range xy {
		switch cohorts[i] {
		case analysis.CohortControl:
			dc.SetColor(colormap.ControlColor)
		case analysis.CohortDisease:
			dc.SetColor(colormap.DiseaseColor)
		default:
			continue
		}
		dc.DrawCircle(
			px+scale(p[0], minX, maxX)*pw,
			py+ph-scale(p[1], minY, maxY)*ph,
			3,
		)
		dc.Fill()
	}

	for i, entry := range []struct {
		name  string
		color color.RGBA
	}{
		{"control", colormap.ControlColor},
		{"disease", colormap.DiseaseColor},
	} {
		y := py + 10 + float64(i)*18
		dc.SetColor(entry.color)
		dc.DrawCircle(px+pw+20, y, 5)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(entry.name, px+pw+32, y, 0, 0.4)
	}

	return dc.SavePNG(path)
}

// Bar draws one bar per label.
func (c *Charter) Bar(path, title string, labels []string, values []float64) error {
	if len(labels) != len(values) {
		return fmt.Errorf("report: %d labels but %d values", len(labels), len(values))
	}

	dc := c.context(title)
	c.drawAxes(dc)
	px, py, pw, ph := c.plotArea()

	maxV := maxOf(values)
	slot := pw / float64(len(values)+1)
	barW := slot * 0.7

	for i, v := range values {
		x := px + slot*float64(i) + slot/2
		barH := 0.0
		if maxV > 0 {
			barH = v / maxV * ph
		}
		dc.SetColor(colormap.AtIndex(i))
		dc.DrawRectangle(x, py+ph-barH, barW, barH)
		dc.Fill()
		dc.SetColor(color.Black)
		drawTiltedLabel(dc, labels[i], x+barW/2, py+ph+8)
	}

	dc.SetColor(color.Black)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", maxV), px-8, py, 1, 0.5)
	dc.DrawStringAnchored("0", px-8, py+ph, 1, 0.5)

	return dc.SavePNG(path)
}

// Histogram bins values and draws their frequency bars; the mean is noted in
// the subtitle.
func (c *Charter) Histogram(path, title string, values []float64, bins int) error {
	if len(values) == 0 {
		return fmt.Errorf("report: no values to histogram")
	}
	if bins <= 0 {
		bins = 20
	}

	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	mean := sum / float64(len(values))

	counts := make([]float64, bins)
	span := maxV - minV
	for _, v := range values {
		b := 0
		if span > 0 {
			b = int((v - minV) / span * float64(bins))
			if b == bins {
				b = bins - 1
			}
		}
		counts[b]++
	}

	dc := c.context(fmt.Sprintf("%s (mean=%.4f)", title, mean))
	c.drawAxes(dc)
	px, py, pw, ph := c.plotArea()

	maxC := maxOf(counts)
	binW := pw / float64(bins)
	dc.SetColor(colormap.AtIndex(0))
	for i, n := range counts {
		if n == 0 {
			continue
		}
		barH := n / maxC * ph
		dc.DrawRectangle(px+binW*float64(i), py+ph-barH, binW*0.95, barH)
		dc.Fill()
	}

	dc.SetColor(color.Black)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", minV), px, py+ph+14, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", maxV), px+pw, py+ph+14, 0.5, 0.5)

	return dc.SavePNG(path)
}

// GroupedFractions draws the control/disease fraction bars side by side per
// label, annotating each pair with its binomial test p-value.
func (c *Charter) GroupedFractions(path, title string, labels []string, control, disease, pvals []float64) error {
	if len(labels) != len(control) || len(labels) != len(disease) || len(labels) != len(pvals) {
		return fmt.Errorf("report: grouped bar inputs not aligned")
	}

	dc := c.context(title)
	c.drawAxes(dc)
	px, py, pw, ph := c.plotArea()

	maxV := math.Max(maxOf(control), maxOf(disease))
	if maxV == 0 {
		maxV = 1
	}
	slot := pw / float64(len(labels)+1)
	barW := slot * 0.35

	for i := range labels {
		x := px + slot*float64(i) + slot/2
		hc := control[i] / maxV * ph
		hd := disease[i] / maxV * ph

		dc.SetColor(colormap.ControlColor)
		dc.DrawRectangle(x, py+ph-hc, barW, hc)
		dc.Fill()
		dc.SetColor(colormap.DiseaseColor)
		dc.DrawRectangle(x+barW, py+ph-hd, barW, hd)
		dc.Fill()

		dc.SetColor(color.Black)
		top := py + ph - math.Max(hc, hd) - 6
		dc.DrawStringAnchored(fmt.Sprintf("%.2e", pvals[i]), x+barW, top, 0.5, 1)
		drawTiltedLabel(dc, labels[i], x+barW, py+ph+8)
	}

	for i, entry := range []struct {
		name  string
		color color.RGBA
	}{
		{"control", colormap.ControlColor},
		{"disease", colormap.DiseaseColor},
	} {
		y := py + 10 + float64(i)*18
		dc.SetColor(entry.color)
		dc.DrawRectangle(px+pw+14, y-5, 10, 10)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(entry.name, px+pw+32, y, 0, 0.4)
	}

	dc.SetColor(color.Black)
	dc.DrawStringAnchored("fraction of query cells", 20, py+ph/2, 0, 0.5)

	return dc.SavePNG(path)
}

// drawTiltedLabel draws a tick label rotated to fit under narrow bars.
func drawTiltedLabel(dc *gg.Context, label string, x, y float64) {
	dc.Push()
	dc.RotateAbout(gg.Radians(45), x, y)
	dc.DrawStringAnchored(label, x, y, 0, 0.5)
	dc.Pop()
}

func bounds(xy [][2]float64) (minX, maxX, minY, maxY float64) {
	if len(xy) == 0 {
		return 0, 1, 0, 1
	}
	minX, maxX = xy[0][0], xy[0][0]
	minY, maxY = xy[0][1], xy[0][1]
	for _, p := range xy {
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
	}
	return minX, maxX, minY, maxY
}

func scale(v, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	return (v - min) / (max - min)
}

func maxOf(values []float64) float64 {
	var m float64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
