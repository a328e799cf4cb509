package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` _ __   ___ _ __ __ _  ___ | | __ _ `, "#34d399"},
	{`| '_ \ / _ \ '__/ _' |/ _ \| |/ _' |`, "#2dd4bf"},
	{`| |_) |  __/ | | (_| | (_) | | (_| |`, "#22d3ee"},
	{`| .__/ \___|_|  \__, |\___/|_|\__,_|`, "#38bdf8"},
	{`|_|             |___/               `, "#60a5fa"},
}

// PrintBanner writes the pergola banner and version to w, colored when w is a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
