package pergola

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/pergola/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Runner drives one conversation from a line-oriented terminal: it prints each view and
// reads the next event id. Useful for trying flows out and for scripted tests.
type Runner struct {
	Input  io.Reader
	Output io.Writer

	// Headless suppresses the banner and the prompt.
	Headless bool

	// Renderer, when set, turns each view into markdown and prints what it returns.
	Renderer func(markdown string) (string, error)
}

// NewRunner creates a Runner over in and out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run launches flowID and signals one event per input line until the flow ends, the
// input is exhausted or the user types "exit".
func (r *Runner) Run(ctx context.Context, exec *Executor, flowID string, input map[string]any) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintf(r.Output, "--- pergola: %s ---\n", flowID)
	}

	resp, err := exec.Launch(ctx, flowID, input, nil)
	if err != nil {
		return fmt.Errorf("launch error: %w", err)
	}

	for {
		view := resp.View
		if view.IsRedirect() {
			if view, err = exec.CurrentViewSelection(ctx, view.ConversationID, nil); err != nil {
				return fmt.Errorf("redirect error: %w", err)
			}
		}
		if err := r.render(view); err != nil {
			return err
		}
		if !resp.Active() {
			return nil
		}

		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lines.ReadString('\n')
		event := strings.TrimSpace(text)
		if err != nil && (!errors.Is(err, io.EOF) || event == "") {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if event == "exit" || event == "quit" {
			fmt.Fprintln(r.Output, "Bye!")
			return nil
		}

		resp, err = exec.SignalEvent(ctx, event, resp.EncodedKey(), nil)
		if err != nil {
			return fmt.Errorf("signal error: %w", err)
		}
	}
}

func (r *Runner) render(view domain.ViewSelection) error {
	header := "view"
	if view.IsEnd() {
		header = "end"
	}
	var model []byte
	if len(view.Model) > 0 {
		var err error
		if model, err = yaml.Marshal(view.Model); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
	}

	if r.Renderer != nil {
		var md strings.Builder
		fmt.Fprintf(&md, "## %s `%s`\n", view.ViewName, header)
		if len(model) > 0 {
			fmt.Fprintf(&md, "\n```yaml\n%s```\n", model)
		}
		out, err := r.Renderer(md.String())
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		fmt.Fprint(r.Output, out)
		return nil
	}

	fmt.Fprintf(r.Output, "[%s] %s\n", header, view.ViewName)
	fmt.Fprint(r.Output, string(model))
	return nil
}
