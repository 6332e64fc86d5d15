package main

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotWaits writes a chart of how long each Next call blocked (blue) with
// the mean wait (red). The format follows the extension of path.
func plotWaits(path, split string, waits []time.Duration) error {
	p := plot.New()
	p.Title.Text = "Consumer wait per batch: " + split
	p.X.Label.Text = "batch"
	p.Y.Label.Text = "wait (ms)"

	xys := make(plotter.XYs, len(waits))
	mean := 0.0
	for i, w := range waits {
		ms := float64(w) / float64(time.Millisecond)
		xys[i] = plotter.XY{X: float64(i), Y: ms}
		mean += ms
	}
	if len(waits) > 0 {
		mean /= float64(len(waits))
	}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("wait", sc)

	xmax, ymax := waitRange(xys)
	ml, err := plotter.NewLine(plotter.XYs{{X: 0, Y: mean}, {X: xmax, Y: mean}})
	if err != nil {
		return err
	}
	ml.Color = color.RGBA{R: 200, G: 30, B: 30, A: 200}
	ml.Width = vg.Points(0.8)
	p.Add(ml)
	p.Legend.Add("mean", ml)

	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max = 0, xmax
	p.Y.Min, p.Y.Max = 0, ymax

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// waitRange returns the upper X and Y bounds for a wait chart. Both axes
// start at zero; the Y axis gets 10% headroom and spans at least 1ms.
func waitRange(xys plotter.XYs) (xmax, ymax float64) {
	xmax, ymax = 1, 0
	for _, p := range xys {
		xmax = math.Max(xmax, p.X+1)
		ymax = math.Max(ymax, p.Y)
	}
	return xmax, math.Max(ymax*1.1, 1)
}
