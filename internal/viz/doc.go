// Package viz renders linear models, trim results and scenario runs for the
// terminal.
//
//   - [RenderMatrix], [RenderModel], [RenderTrim], [RenderModes] and
//     [RenderReport] produce lipgloss-styled text
//   - [PlotSeries] draws one logged column with asciigraph
//   - [LiveModel] is a Bubble Tea program that follows a running scenario
//
// # Key Bindings
//
//	Space - Pause/Resume the run
//	Tab   - Cycle the plotted column
//	T     - Cycle color themes
//	Q     - Stop the run and quit
package viz
