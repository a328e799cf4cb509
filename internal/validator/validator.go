package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/pergola/pkg/domain"
)

// ValidateFlow checks a resolved flow for problems that only surface at run time:
// unreachable states, dead ends, and sub-flow end states the parent cannot continue from.
// Sub-flows are validated too.
func ValidateFlow(flow *domain.Flow) error {
	problems := Problems(flow)
	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// Problems lists every problem found in flow and its sub-flows, in state order.
func Problems(flow *domain.Flow) []string {
	seen := make(map[*domain.Flow]bool)
	return problems(flow, seen)
}

func problems(flow *domain.Flow, seen map[*domain.Flow]bool) []string {
	if seen[flow] {
		return nil
	}
	seen[flow] = true

	var errors []string
	if !flow.Resolved() {
		return []string{fmt.Sprintf("Flow '%s' is not resolved", flow.ID())}
	}

	visited := reachable(flow)
	for _, state := range flow.States() {
		id := state.ID()
		if !visited[id] {
			errors = append(errors, fmt.Sprintf("Unreachable state: '%s/%s'", flow.ID(), id))
		}

		switch s := state.(type) {
		case *domain.EndState:
			continue
		case *domain.SubflowState:
			for _, end := range endStates(s.Subflow) {
				if flow.TransitionFor(s, end) == nil {
					errors = append(errors, fmt.Sprintf("Sub-flow state '%s/%s' has no transition for end state '%s'", flow.ID(), id, end))
				}
			}
			errors = append(errors, problems(s.Subflow, seen)...)
		default:
			if len(state.Base().Transitions) == 0 && len(flow.GlobalTransitions) == 0 {
				errors = append(errors, fmt.Sprintf("Dead end: '%s/%s' has no transitions", flow.ID(), id))
			}
		}
	}
	return errors
}

// reachable crawls the flow from its start state along transitions and exception handlers.
// Flow-wide transitions and handlers are reachable from every state.
func reachable(flow *domain.Flow) map[string]bool {
	visited := make(map[string]bool)
	start := flow.StartState()
	if start == nil {
		return visited
	}

	var globals []string
	for _, t := range flow.GlobalTransitions {
		globals = append(globals, t.TargetStateID)
	}
	for _, h := range flow.ExceptionHandlers {
		globals = append(globals, h.TargetStateID)
	}

	queue := []string{start.ID()}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		state, ok := flow.State(currentID)
		if !ok {
			continue
		}
		if _, ok := state.(*domain.EndState); ok {
			continue
		}
		base := state.Base()
		for _, t := range base.Transitions {
			queue = append(queue, t.TargetStateID)
		}
		for _, h := range base.ExceptionHandlers {
			queue = append(queue, h.TargetStateID)
		}
		queue = append(queue, globals...)
	}
	return visited
}

func endStates(flow *domain.Flow) []string {
	if flow == nil {
		return nil
	}
	var ids []string
	for _, s := range flow.States() {
		if _, ok := s.(*domain.EndState); ok {
			ids = append(ids, s.ID())
		}
	}
	return ids
}
