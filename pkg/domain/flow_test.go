package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPayment = errors.New("payment declined")

type validationError struct{ field string }

func (e *validationError) Error() string { return "invalid " + e.field }

func newCheckoutFlow(t *testing.T) *domain.Flow {
	t.Helper()
	flow := domain.NewFlow("checkout")

	cart := domain.NewViewState("cart", "cartView")
	cart.Transitions = []*domain.Transition{domain.On("next", "pay")}

	pay := domain.NewActionState("pay", domain.Succeed("success"))
	pay.Transitions = []*domain.Transition{domain.On("success", "done")}
	pay.ExceptionHandlers = []*domain.ExceptionHandler{
		domain.NewExceptionHandler("declined", domain.MatchSentinel(errPayment), "cart"),
	}

	require.NoError(t, flow.AddState(cart))
	require.NoError(t, flow.AddState(pay))
	require.NoError(t, flow.AddState(domain.NewEndState("done", "")))
	require.NoError(t, flow.AddState(domain.NewViewState("errorView", "")))

	flow.GlobalTransitions = []*domain.Transition{domain.On("cancel", "done")}
	flow.ExceptionHandlers = []*domain.ExceptionHandler{
		domain.NewExceptionHandler("validation", domain.MatchType[*validationError](), "errorView"),
	}
	return flow
}

func TestFlow_Resolve(t *testing.T) {
	flow := newCheckoutFlow(t)
	require.NoError(t, flow.Resolve())
	assert.True(t, flow.Resolved())

	cart, ok := flow.State("cart")
	require.True(t, ok)
	assert.Equal(t, cart, flow.StartState())
	assert.Equal(t, "pay", cart.Base().Transitions[0].Target().ID())
	assert.Equal(t, flow, cart.Base().Flow())
}

func TestFlow_TransitionLookupOrder(t *testing.T) {
	flow := newCheckoutFlow(t)
	require.NoError(t, flow.Resolve())
	cart, _ := flow.State("cart")

	assert.Equal(t, "pay", flow.TransitionFor(cart, "next").TargetStateID)
	assert.Equal(t, "done", flow.TransitionFor(cart, "cancel").TargetStateID)
	assert.Nil(t, flow.TransitionFor(cart, "unknown"))
}

func TestFlow_HandlerLookupOrder(t *testing.T) {
	flow := newCheckoutFlow(t)
	require.NoError(t, flow.Resolve())
	pay, _ := flow.State("pay")

	h := flow.HandlerFor(pay, errPayment)
	require.NotNil(t, h)
	assert.Equal(t, "cart", h.Target().ID())

	h = flow.HandlerFor(pay, &validationError{field: "card"})
	require.NotNil(t, h)
	assert.Equal(t, "errorView", h.TargetStateID)

	assert.Nil(t, flow.HandlerFor(pay, errors.New("boom")))
}

func TestFlow_ResolveUnknownTarget(t *testing.T) {
	flow := domain.NewFlow("broken")
	v := domain.NewViewState("start", "")
	v.Transitions = []*domain.Transition{domain.On("go", "nowhere")}
	require.NoError(t, flow.AddState(v))

	err := flow.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.False(t, flow.Resolved())
}

func TestFlow_ResolveUnknownHandlerTarget(t *testing.T) {
	flow := domain.NewFlow("broken")
	require.NoError(t, flow.AddState(domain.NewEndState("end", "")))
	flow.ExceptionHandlers = []*domain.ExceptionHandler{
		domain.NewExceptionHandler("all", domain.MatchAny(), "missing"),
	}
	assert.ErrorIs(t, flow.Resolve(), domain.ErrConfiguration)
}

func TestFlow_DuplicateState(t *testing.T) {
	flow := domain.NewFlow("dup")
	require.NoError(t, flow.AddState(domain.NewEndState("end", "")))
	err := flow.AddState(domain.NewViewState("end", ""))

	var cfg *domain.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "end", cfg.StateID)
}

func TestFlow_ResolveSubflowRecursively(t *testing.T) {
	child := domain.NewFlow("child")
	require.NoError(t, child.AddState(domain.NewEndState("finish", "")))

	parent := domain.NewFlow("parent")
	sub := domain.NewSubflowState("call", child)
	sub.Transitions = []*domain.Transition{domain.On("finish", "end")}
	require.NoError(t, parent.AddState(sub))
	require.NoError(t, parent.AddState(domain.NewEndState("end", "")))

	require.NoError(t, parent.Resolve())
	assert.True(t, child.Resolved())
}

func TestFlow_ResolveSelfReferencingSubflow(t *testing.T) {
	flow := domain.NewFlow("recursive")
	sub := domain.NewSubflowState("again", flow)
	sub.Transitions = []*domain.Transition{domain.On("end", "end")}
	require.NoError(t, flow.AddState(domain.NewViewState("ask", "")))
	flow.StartStateID = "ask"
	require.NoError(t, flow.AddState(sub))
	require.NoError(t, flow.AddState(domain.NewEndState("end", "")))

	require.NoError(t, flow.Resolve())
}

func TestStateKind(t *testing.T) {
	assert.Equal(t, "view", domain.StateKind(domain.NewViewState("v", "")))
	assert.Equal(t, "action", domain.StateKind(domain.NewActionState("a")))
	assert.Equal(t, "subflow", domain.StateKind(domain.NewSubflowState("s", nil)))
	assert.Equal(t, "end", domain.StateKind(domain.NewEndState("e", "")))
}
