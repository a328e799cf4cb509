package listener

import (
	"path"
	"slices"

	"github.com/aretw0/pergola/pkg/domain"
)

// Criteria decides whether a listener observes executions of a flow.
type Criteria interface {
	AppliesTo(flow *domain.Flow) bool
}

// CriteriaFunc adapts a function to Criteria.
type CriteriaFunc func(flow *domain.Flow) bool

func (f CriteriaFunc) AppliesTo(flow *domain.Flow) bool { return f(flow) }

type allFlows struct{}

func (allFlows) AppliesTo(*domain.Flow) bool { return true }

// AllFlows applies to every flow. It is the default when no criteria are given.
func AllFlows() Criteria { return allFlows{} }

// FlowIDs applies to flows with one of the given ids.
func FlowIDs(ids ...string) Criteria {
	ids = slices.Clone(ids)
	return CriteriaFunc(func(flow *domain.Flow) bool {
		return flow != nil && slices.Contains(ids, flow.ID())
	})
}

// FlowPattern applies to flows whose id matches a shell glob.
func FlowPattern(pattern string) Criteria {
	return CriteriaFunc(func(flow *domain.Flow) bool {
		if flow == nil {
			return false
		}
		ok, err := path.Match(pattern, flow.ID())
		return err == nil && ok
	})
}

// anyOf is the OR of its members.
type anyOf []Criteria

func (c anyOf) AppliesTo(flow *domain.Flow) bool {
	for _, crit := range c {
		if crit.AppliesTo(flow) {
			return true
		}
	}
	return false
}
