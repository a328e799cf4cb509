package runtime_test

import (
	"fmt"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/mapping"
)

type validationError struct{ field string }

func (e *validationError) Error() string { return "invalid " + e.field }

func fail(err error) domain.Action {
	return domain.ActionFunc(func(domain.RequestContext) (domain.Event, error) {
		return domain.Event{}, err
	})
}

// recorder logs every notification as "<name>:<hook>" into a shared log.
type recorder struct {
	listener.Adapter
	name     string
	log      *[]string
	counts   map[string]int
	depth    int
	maxDepth int
}

func newRecorder(name string, log *[]string) *recorder {
	return &recorder{name: name, log: log, counts: make(map[string]int)}
}

func (r *recorder) record(hook string) {
	r.counts[hook]++
	if r.log != nil {
		*r.log = append(*r.log, fmt.Sprintf("%s:%s", r.name, hook))
	}
}

func (r *recorder) RequestSubmitted(domain.RequestContext) error {
	r.record("requestSubmitted")
	return nil
}

func (r *recorder) RequestProcessed(domain.RequestContext) error {
	r.record("requestProcessed")
	return nil
}

func (r *recorder) SessionStarting(domain.RequestContext, *domain.Flow, map[string]any) error {
	r.record("sessionStarting")
	return nil
}

func (r *recorder) SessionStarted(domain.RequestContext, *domain.FlowSession) error {
	r.record("sessionStarted")
	r.depth++
	if r.depth > r.maxDepth {
		r.maxDepth = r.depth
	}
	return nil
}

func (r *recorder) EventSignaled(domain.RequestContext, domain.Event) error {
	r.record("eventSignaled")
	return nil
}

func (r *recorder) StateEntered(_ domain.RequestContext, _ domain.State, s domain.State) error {
	r.record("stateEntered")
	return nil
}

func (r *recorder) Paused(domain.RequestContext, domain.ViewSelection) error {
	r.record("paused")
	return nil
}

func (r *recorder) Resumed(domain.RequestContext) error {
	r.record("resumed")
	return nil
}

func (r *recorder) SessionEnded(domain.RequestContext, *domain.FlowSession, map[string]any) error {
	r.record("sessionEnded")
	r.depth--
	return nil
}

// profileFlows builds a parent flow delegating profile editing to a child flow.
// The child mutates its copy of the profile and sets a private attribute.
func profileFlows() (parent, child *domain.Flow) {
	edit := domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
		profile := rc.FlowScope()["profile"].(map[string]any)
		profile["name"] = "bia"
		rc.FlowScope().Put("secret", 42)
		return domain.Event{}, nil
	})

	child = dsl.New("child").
		View("edit").Entry(edit).On("done", "finished").On("abort", "aborted").Builder().
		End("finished").Builder().
		End("aborted").Builder().
		MustBuild()

	parent = dsl.New("parent").
		Subflow("edit-profile", child).
		Input(mapping.Pass("profile")).
		Output(mapping.New(mapping.Map("profile.name", "childName"))).
		On("finished", "review").Builder().
		View("review").On("ok", "end").Builder().
		End("end").Builder().
		MustBuild()
	return parent, child
}
