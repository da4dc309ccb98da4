package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	trainColor = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	valColor   = color.RGBA{R: 200, G: 30, B: 30, A: 255}
)

// PlotEpochs writes a PNG with the train and validation loss and F1 curves.
func PlotEpochs(path string, rows []EpochRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("no epochs to plot")
	}
	p := plot.New()
	p.Title.Text = "Training curves"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		col   color.Color
		dash  bool
		value func(EpochRow) float64
	}{
		{"train loss", trainColor, false, func(r EpochRow) float64 { return r.Train.CrossEntropy }},
		{"val loss", valColor, false, func(r EpochRow) float64 { return r.Val.CrossEntropy }},
		{"train F1", trainColor, true, func(r EpochRow) float64 { return r.Train.F1 }},
		{"val F1", valColor, true, func(r EpochRow) float64 { return r.Val.F1 }},
	}
	for _, s := range series {
		xys := make(plotter.XYs, len(rows))
		for i, r := range rows {
			xys[i] = plotter.XY{X: float64(i), Y: s.value(r)}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = s.col
		line.Width = vg.Points(1.2)
		if s.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
