package report

import (
	"fmt"
	"log/slog"

	"github.com/weiihann/lapbench/harness"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ChartConfig controls the chart layout. The output format follows the
// file extension of Path (png, svg, pdf, ...).
type ChartConfig struct {
	Path   string
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

func (c ChartConfig) withDefaults(base int) ChartConfig {
	if c.Title == "" {
		c.Title = "Time to solve LAPs using different solvers"
	}
	if c.XLabel == "" {
		c.XLabel = fmt.Sprintf("Matrix dimension (%d^n)", base)
	}
	if c.YLabel == "" {
		c.YLabel = "Real time to solution (seconds)"
	}
	if c.Width == 0 {
		c.Width = 8 * vg.Inch
	}
	if c.Height == 0 {
		c.Height = 6 * vg.Inch
	}

	return c
}

// Chart renders a log-log plot of mean time against matrix size, one
// line with points per solver. Non-positive timings cannot be placed on a
// log axis and are left out with a warning.
func Chart(logger *slog.Logger, rs *harness.ResultSet, cfg ChartConfig) error {
	if rs == nil || rs.Empty() {
		return fmt.Errorf("no results to chart")
	}
	if cfg.Path == "" {
		return fmt.Errorf("chart path is empty")
	}

	cfg = cfg.withDefaults(rs.Base)

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XLabel
	p.Y.Label.Text = cfg.YLabel
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	var lines []any

	for _, name := range rs.Solvers {
		var xys plotter.XYs

		for _, e := range rs.Entries(name) {
			if e.Mean <= 0 {
				logger.Warn("skipping non-positive timing on log chart",
					slog.String("solver", name),
					slog.Int("size", e.Size),
				)

				continue
			}

			xys = append(xys, plotter.XY{X: float64(e.Size), Y: e.Mean.Seconds()})
		}

		if len(xys) == 0 {
			continue
		}

		lines = append(lines, name, xys)
	}

	if len(lines) == 0 {
		return fmt.Errorf("no positive timings to chart")
	}

	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("add series: %w", err)
	}

	if err := p.Save(cfg.Width, cfg.Height, cfg.Path); err != nil {
		return fmt.Errorf("save chart %s: %w", cfg.Path, err)
	}

	logger.Info("chart written", slog.String("path", cfg.Path))

	return nil
}
