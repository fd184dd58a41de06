// Package export writes logged scenario data in formats other tools read.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/aerotrim/internal/scenario"
)

// TimeAxis selects simulation time as the x axis of a plot.
const TimeAxis = "sim-time-sec"

type SVGOptions struct {
	Width  int
	Height int
	Stroke string
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.Stroke == "" {
		o.Stroke = "#00ffff"
	}
	return o
}

type bounds struct{ lo, hi float64 }

// span pads the range by 10% each side.
func span(v []float64) bounds {
	b := bounds{v[0], v[0]}
	for _, x := range v {
		b.lo, b.hi = min(b.lo, x), max(b.hi, x)
	}
	r := b.hi - b.lo
	if r == 0 {
		r = 1
	}
	return bounds{b.lo - 0.1*r, b.hi + 0.1*r}
}

func (b bounds) scale(v, size float64) float64 {
	return (v - b.lo) / (b.hi - b.lo) * size
}

func series(l *scenario.Log, name string) ([]float64, error) {
	if name == TimeAxis {
		return l.Times(), nil
	}
	v, ok := l.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q was not logged", name)
	}
	return v, nil
}

// WriteSVG draws column y against column x (or [TimeAxis]) as one polyline.
func WriteSVG(w io.Writer, l *scenario.Log, x, y string, opts SVGOptions) error {
	xs, err := series(l, x)
	if err != nil {
		return err
	}
	ys, err := series(l, y)
	if err != nil {
		return err
	}
	if len(xs) < 2 {
		return fmt.Errorf("need at least two records, have %d", len(xs))
	}
	opts = opts.withDefaults()
	bx, by := span(xs), span(ys)
	width, height := float64(opts.Width), float64(opts.Height)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<text x="8" y="16" fill="#888888" font-family="monospace" font-size="12">%s vs %s</text>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		opts.Width, opts.Height, opts.Width, opts.Height, y, x, opts.Stroke)

	for i := range xs {
		cmd := " L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&sb, "%s%.1f,%.1f", cmd, bx.scale(xs[i], width), height-by.scale(ys[i], height))
	}
	sb.WriteString("\"/>\n</svg>\n")

	_, err = io.WriteString(w, sb.String())
	return err
}
