package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/aerotrim/internal/scenario"
)

type PlotOptions struct {
	Width  int
	Height int
}

// downsample keeps at most n evenly spaced points.
func downsample(v []float64, n int) []float64 {
	if n < 2 || len(v) <= n {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v[i*(len(v)-1)/(n-1)]
	}
	return out
}

// PlotSeries draws one logged column against time.
func PlotSeries(l *scenario.Log, column string, opts PlotOptions) (string, error) {
	values, ok := l.Column(column)
	if !ok {
		return "", fmt.Errorf("column %q was not logged", column)
	}
	if len(values) == 0 {
		return "", fmt.Errorf("log is empty")
	}
	if opts.Width == 0 {
		opts.Width = 70
	}
	if opts.Height == 0 {
		opts.Height = 12
	}

	times := l.Times()
	caption := fmt.Sprintf("%s, t = %.1f..%.1f s", column, times[0], times[len(times)-1])
	return asciigraph.Plot(downsample(values, opts.Width),
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption)), nil
}
