// Package charts renders analysis rankings and trends as PNG images with
// gonum/plot.
package charts

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"salone/internal/core"
)

// Default image size.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

var (
	Teal   = color.RGBA{R: 75, G: 192, B: 192, A: 255}
	Purple = color.RGBA{R: 153, G: 102, B: 255, A: 255}
	Orange = color.RGBA{R: 255, G: 159, B: 64, A: 255}
	Pink   = color.RGBA{R: 255, G: 99, B: 132, A: 255}
)

// Series is one named line of a trend chart.
type Series struct {
	Name   string
	Values []float64
}

func newPlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.Text = ylabel
	return p
}

// Bar plots a ranking in its order. Non-finite values are drawn as 0.
func Bar(title, ylabel string, r core.Ranking, c color.Color) (*plot.Plot, error) {
	p := newPlot(title, ylabel)
	if len(r) == 0 {
		return p, nil
	}

	values := make(plotter.Values, len(r))
	labels := make([]string, len(r))
	for i, a := range r {
		values[i] = finite(a.Value)
		labels[i] = a.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, fmt.Errorf("bar chart %q: %w", title, err)
	}
	bars.Color = c
	bars.LineStyle.Width = vg.Length(0)
	p.Add(plotter.NewGrid(), bars)

	p.NominalX(labels...)
	if len(labels) > 6 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	if p.Y.Min > 0 {
		p.Y.Min = 0
	}
	return p, nil
}

// Lines plots one line per series over the nominal x labels.
func Lines(title, ylabel string, labels []string, series []Series) (*plot.Plot, error) {
	p := newPlot(title, ylabel)
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range series {
		pts := make(plotter.XYs, len(labels))
		for x := range labels {
			pts[x].X = float64(x)
			if x < len(s.Values) {
				pts[x].Y = finite(s.Values[x])
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", s.Name, err)
		}
		line.Color = Hue(i, len(series))
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	if len(labels) > 0 {
		p.NominalX(labels...)
	}
	if p.Y.Min > 0 {
		p.Y.Min = 0
	}
	return p, nil
}

// WritePNG encodes p at the default size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// Hue spreads n series over the colour wheel (hsl(i*360/n, 70%, 50%)).
func Hue(i, n int) color.RGBA {
	if n <= 0 {
		n = 1
	}
	return hsl(float64(i)*360/float64(n), 0.7, 0.5)
}

func hsl(h, s, l float64) color.RGBA {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := l - c/2
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

func finite(v float64) float64 {
	if !core.IsDefined(v) {
		return 0
	}
	return v
}
