// Package plots renders training curves and evaluation plots to PNG files.
package plots

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// epochSeries converts per-epoch values into XY points starting at epoch 1.
func epochSeries(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}

func saveCurvePlot(path, title, yLabel string, series map[string][]float64, order []string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epochs"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, name := range order {
		values := series[name]
		line, err := plotter.NewLine(epochSeries(values))
		if err != nil {
			return fmt.Errorf("failed to build %s series: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// SaveLossPlot writes a loss-vs-epochs line plot for the train and
// validation series.
func SaveLossPlot(path string, trainLosses, valLosses []float64) error {
	return saveCurvePlot(path, "Loss vs Epochs", "Loss",
		map[string][]float64{
			"train loss": trainLosses,
			"val loss":   valLosses,
		},
		[]string{"train loss", "val loss"})
}

// SaveAccuracyPlot writes an accuracy-vs-epochs line plot for the train and
// validation series.
func SaveAccuracyPlot(path string, trainAccs, valAccs []float64) error {
	return saveCurvePlot(path, "Accuracy vs Epochs", "Accuracy (%)",
		map[string][]float64{
			"train acc": trainAccs,
			"val acc":   valAccs,
		},
		[]string{"train acc", "val acc"})
}

// confusionGrid adapts a confusion matrix to the plotter.GridXYZ interface.
// Row 0 of the matrix (true class 0) is drawn at the top.
type confusionGrid struct {
	matrix [][]int
}

func (g confusionGrid) Dims() (int, int) {
	n := len(g.matrix)
	return n, n
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

func (g confusionGrid) Z(c, r int) float64 {
	// Flip rows so true class 0 appears at the top of the image.
	trueClass := len(g.matrix) - 1 - r
	return float64(g.matrix[trueClass][c])
}

// classTicks places one tick per class with the class name as its label.
type classTicks struct {
	names    []string
	reversed bool
}

func (ct classTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, len(ct.names))
	for i, name := range ct.names {
		pos := float64(i)
		label := name
		if ct.reversed {
			label = ct.names[len(ct.names)-1-i]
		}
		if pos < min || pos > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: pos, Label: label})
	}
	return ticks
}

// SaveConfusionMatrix writes a confusion matrix heat map with per-cell
// counts. matrix is indexed [true_class][predicted_class].
func SaveConfusionMatrix(path string, matrix [][]int, classNames []string) error {
	n := len(matrix)
	if n == 0 {
		return fmt.Errorf("confusion matrix is empty")
	}
	if len(classNames) != n {
		return fmt.Errorf("have %d class names for a %dx%d matrix", len(classNames), n, n)
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"

	counts := make([]float64, 0, n*n)
	for _, row := range matrix {
		for _, v := range row {
			counts = append(counts, float64(v))
		}
	}

	maxCount := floats.Max(counts)
	if maxCount == 0 {
		// An all-zero matrix would give the color map an empty range.
		maxCount = 1
	}

	colors := moreland.SmoothBlueRed()
	colors.SetMin(0)
	colors.SetMax(maxCount)

	heatmap := plotter.NewHeatMap(confusionGrid{matrix: matrix}, colors.Palette(255))
	p.Add(heatmap)

	p.X.Tick.Marker = classTicks{names: classNames}
	p.Y.Tick.Marker = classTicks{names: classNames, reversed: true}

	// Per-cell counts
	labels := plotter.XYLabels{}
	for trueClass := 0; trueClass < n; trueClass++ {
		for predClass := 0; predClass < n; predClass++ {
			labels.XYs = append(labels.XYs, plotter.XY{
				X: float64(predClass),
				Y: float64(n - 1 - trueClass),
			})
			labels.Labels = append(labels.Labels, strconv.Itoa(matrix[trueClass][predClass]))
		}
	}
	cellLabels, err := plotter.NewLabels(labels)
	if err != nil {
		return fmt.Errorf("failed to build cell labels: %w", err)
	}
	for i := range cellLabels.TextStyle {
		cellLabels.TextStyle[i].XAlign = draw.XCenter
		cellLabels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(cellLabels)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
