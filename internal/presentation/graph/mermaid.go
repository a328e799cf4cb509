package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/pergola/pkg/domain"
)

// Overlay contains runtime data to visualize on the graph.
type Overlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart of a flow definition.
// It applies semantic styling:
// - Start state: ((Circle))
// - Action: [[Subroutine]]
// - View (pause point): [/Parallelogram/]
// - Sub-flow: [(Cylinder)]
// - End: ([Stadium])
// Exception handlers are drawn as dotted edges, global transitions from a hidden "*" node.
func GenerateMermaid(flow *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	start := flow.StartState()
	for _, state := range flow.States() {
		safeID := sanitizeMermaidID(state.ID())

		opener, closer := "[", "]"
		switch state.(type) {
		case *domain.ActionState:
			opener, closer = "[[", "]]"
		case *domain.ViewState:
			opener, closer = "[/", "/]"
		case *domain.SubflowState:
			opener, closer = "[(", ")]"
		case *domain.EndState:
			opener, closer = "([", "])"
		}
		if start != nil && state.ID() == start.ID() {
			opener, closer = "((", "))"
		}

		label := state.ID()
		if sub, ok := state.(*domain.SubflowState); ok && sub.Subflow != nil {
			label = fmt.Sprintf("%s <br/> ↳ %s", state.ID(), sub.Subflow.ID())
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)

		base := state.Base()
		for _, t := range base.Transitions {
			writeTransition(&sb, safeID, t, "-->")
		}
		for _, h := range base.ExceptionHandlers {
			writeHandler(&sb, safeID, h)
		}
	}

	if len(flow.GlobalTransitions) > 0 || len(flow.ExceptionHandlers) > 0 {
		sb.WriteString("    __global__{{\"*\"}}\n")
		for _, t := range flow.GlobalTransitions {
			writeTransition(&sb, "__global__", t, "-.->")
		}
		for _, h := range flow.ExceptionHandlers {
			writeHandler(&sb, "__global__", h)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

func writeTransition(sb *strings.Builder, from string, t *domain.Transition, plain string) {
	to := sanitizeMermaidID(t.TargetStateID)
	if t.Criteria == nil {
		fmt.Fprintf(sb, "    %s %s %s\n", from, plain, to)
		return
	}
	cond := escapeLabel(t.Criteria.String())
	if plain == "-.->" {
		fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", from, cond, to)
		return
	}
	fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, cond, to)
}

func writeHandler(sb *strings.Builder, from string, h *domain.ExceptionHandler) {
	name := h.Name
	if name == "" {
		name = "error"
	}
	fmt.Fprintf(sb, "    %s -. \"⚠ %s\" .-> %s\n", from, escapeLabel(name), sanitizeMermaidID(h.TargetStateID))
}

// escapeLabel replaces double quotes, which would end a Mermaid label.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
