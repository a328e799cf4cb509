package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function rendering markdown for the terminal with glamour.
// Without options the style follows the terminal background, falling back to plain
// ASCII markup when the output is not a terminal.
func NewRenderer(opts ...glamour.TermRendererOption) (func(string) (string, error), error) {
	if len(opts) == 0 {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
