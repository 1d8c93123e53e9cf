package deflate

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// heatColors assigns each 1-8 bit-cost bucket a background/foreground pair,
// cheapest (1 bit) to most expensive (8+ bits).
var heatColors = [8]*color.Color{
	color.New(color.BgCyan, color.FgWhite),
	color.New(color.BgGreen, color.FgWhite),
	color.New(color.BgBlack, color.FgWhite),
	color.New(color.BgBlue, color.FgWhite),
	color.New(color.BgMagenta, color.FgWhite),
	color.New(color.BgYellow, color.FgWhite),
	color.New(color.BgRed, color.FgBlack),
	color.New(color.BgWhite, color.FgBlack),
}

// heatColorsUnderline mirrors heatColors with an added Underline attribute,
// built as independent *Color values (rather than mutating heatColors in
// place) so rendering a match-copy byte never alters the literal palette.
var heatColorsUnderline = [8]*color.Color{
	color.New(color.BgCyan, color.FgWhite, color.Underline),
	color.New(color.BgGreen, color.FgWhite, color.Underline),
	color.New(color.BgBlack, color.FgWhite, color.Underline),
	color.New(color.BgBlue, color.FgWhite, color.Underline),
	color.New(color.BgMagenta, color.FgWhite, color.Underline),
	color.New(color.BgYellow, color.FgWhite, color.Underline),
	color.New(color.BgRed, color.FgBlack, color.Underline),
	color.New(color.BgWhite, color.FgBlack, color.Underline),
}

// PrintHeatmap renders a’s per-byte cost as a colored grid, one cell per
// unpacked byte: background color encodes its bit cost (bucketed 1-8,
// clamped), and an underline marks a byte that is itself a match copy
// (i.e. has an earlier literal origin) rather than a literal. This is a
// diagnostic view only — nothing else in the package depends on it.
func (a *Analysis) PrintHeatmap(w io.Writer, width int) {
	if width <= 1 {
		width = 80
	}
	col := 1
	fmt.Fprint(w, " ")
	for i, b := range a.Unpacked {
		if col+1 == width {
			fmt.Fprint(w, "\n ")
			col = 1
		}
		bucket := int(a.Cost[i] + 0.5)
		if bucket < 1 {
			bucket = 1
		}
		if bucket > 8 {
			bucket = 8
		}
		text := string(rune(b))
		if b < 0x20 || b >= 0x7f {
			text = "."
		}
		if a.LiteralIndex[i] != SentinelIndex {
			heatColorsUnderline[bucket-1].Fprint(w, text)
		} else {
			heatColors[bucket-1].Fprint(w, text)
		}
		col++
	}
	fmt.Fprint(w, "\n\n")
	fmt.Fprint(w, "Legend: ")
	for i, c := range heatColors {
		c.Fprintf(w, "%d", i+1)
	}
	fmt.Fprintln(w, " bits")
}
