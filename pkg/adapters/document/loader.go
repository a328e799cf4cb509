// Package document loads flows from YAML documents, resolving actions by name through a
// registry and sub-flows by flow id across the loaded set.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/mapping"
	"github.com/aretw0/pergola/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EmitPrefix names built-in actions: "emit:<event>" always succeeds with <event>.
const EmitPrefix = "emit:"

// Loader turns documents into resolved flows.
type Loader struct {
	actions *registry.Actions
	errors  map[string]error
	logger  *slog.Logger
}

// Option configures the Loader.
type Option func(*Loader)

// WithError makes a sentinel error available to catch entries under name.
func WithError(name string, err error) Option {
	return func(l *Loader) {
		l.errors[name] = err
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader resolving action names through actions (may be nil when
// documents only use emit actions).
func NewLoader(actions *registry.Actions, opts ...Option) *Loader {
	if actions == nil {
		actions = registry.NewActions()
	}
	l := &Loader{
		actions: actions,
		errors:  make(map[string]error),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Parse decodes one YAML document.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if raw == nil {
		return nil, errors.New("empty document")
	}

	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
		DecodeHook:  mappingShorthand,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid flow document: %w", err)
	}
	if doc.ID == "" {
		return nil, errors.New("flow document has no id")
	}
	return &doc, nil
}

// mappingShorthand expands "key" into {from: key} when decoding a Mapping.
func mappingShorthand(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeOf(Mapping{}) {
		return map[string]any{"from": data}, nil
	}
	return data, nil
}

// ReadDir parses every *.yaml and *.yml file in dir, in name order.
func ReadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		doc.Source = path
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadDir reads dir and registers every flow it defines.
func (l *Loader) LoadDir(dir string) (*registry.Flows, error) {
	docs, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	flows, err := l.Build(docs...)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("flows loaded", "dir", dir, "count", len(flows))
	return registry.NewFlows(flows...)
}

// Build resolves documents into flows. Sub-flows are referenced by flow id and must be
// among docs; cyclic references are rejected.
func (l *Loader) Build(docs ...*Document) ([]*domain.Flow, error) {
	b := &build{
		loader:   l,
		docs:     make(map[string]*Document, len(docs)),
		flows:    make(map[string]*domain.Flow, len(docs)),
		visiting: make(map[string]bool),
	}
	for _, doc := range docs {
		if _, dup := b.docs[doc.ID]; dup {
			return nil, &domain.ConfigurationError{FlowID: doc.ID, Reason: "flow defined twice"}
		}
		b.docs[doc.ID] = doc
	}

	out := make([]*domain.Flow, 0, len(docs))
	for _, doc := range docs {
		flow, err := b.flow(doc.ID)
		if err != nil {
			if doc.Source != "" {
				return nil, fmt.Errorf("%s: %w", doc.Source, err)
			}
			return nil, err
		}
		out = append(out, flow)
	}
	return out, nil
}

type build struct {
	loader   *Loader
	docs     map[string]*Document
	flows    map[string]*domain.Flow
	visiting map[string]bool
}

func (b *build) flow(id string) (*domain.Flow, error) {
	if f, ok := b.flows[id]; ok {
		return f, nil
	}
	doc, ok := b.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	if b.visiting[id] {
		return nil, &domain.ConfigurationError{FlowID: id, Reason: "cyclic sub-flow reference"}
	}
	b.visiting[id] = true
	defer delete(b.visiting, id)

	fb := dsl.New(doc.ID).Start(doc.Start)
	if len(doc.Input) > 0 {
		m, err := mapper(doc.Input)
		if err != nil {
			return nil, &domain.ConfigurationError{FlowID: id, Reason: err.Error()}
		}
		fb.Input(m)
	}
	for k, v := range doc.Attributes {
		fb.Attr(k, v)
	}
	for _, t := range doc.Global {
		fb.Global(t.On, t.To)
	}
	for _, h := range doc.Catch {
		matcher, err := b.loader.matcher(h.Error)
		if err != nil {
			return nil, &domain.ConfigurationError{FlowID: id, Reason: err.Error()}
		}
		fb.Catch(h.Name, matcher, h.To)
	}

	for _, st := range doc.States {
		if err := b.state(fb, doc, st); err != nil {
			return nil, err
		}
	}

	flow, err := fb.Build()
	if err != nil {
		return nil, err
	}
	b.flows[id] = flow
	return flow, nil
}

func (b *build) state(fb *dsl.Builder, doc *Document, st State) error {
	fail := func(reason string) error {
		return &domain.ConfigurationError{FlowID: doc.ID, StateID: st.ID, Reason: reason}
	}

	var sb *dsl.StateBuilder
	switch st.Type {
	case TypeView, "":
		sb = fb.View(st.ID)
		if st.View != "" {
			sb.Render(st.View)
		}
		if len(st.Model) > 0 {
			sb.Model(st.Model...)
		}
		if st.Redirect {
			sb.Redirect()
		}
	case TypeAction:
		actions, err := b.loader.resolve(st.Actions)
		if err != nil {
			return fail(err.Error())
		}
		sb = fb.Action(st.ID, actions...)
	case TypeSubflow:
		if st.Flow == "" {
			return fail("sub-flow state has no flow")
		}
		sub, err := b.flow(st.Flow)
		if err != nil {
			return err
		}
		sb = fb.Subflow(st.ID, sub)
	case TypeEnd:
		sb = fb.End(st.ID)
		if st.View != "" {
			sb.Render(st.View)
		}
	default:
		return fail(fmt.Sprintf("unknown state type '%s'", st.Type))
	}

	if st.Type != TypeAction && len(st.Actions) > 0 {
		return fail("actions only apply to action states")
	}
	if st.Type != TypeSubflow && st.Flow != "" {
		return fail("flow only applies to sub-flow states")
	}
	if len(st.Input) > 0 {
		m, err := mapper(st.Input)
		if err != nil {
			return fail(err.Error())
		}
		sb.Input(m)
	}
	if len(st.Output) > 0 {
		m, err := mapper(st.Output)
		if err != nil {
			return fail(err.Error())
		}
		sb.Output(m)
	}
	if len(st.Entry) > 0 {
		actions, err := b.loader.resolve(st.Entry)
		if err != nil {
			return fail(err.Error())
		}
		sb.Entry(actions...)
	}
	for _, t := range st.On {
		sb.On(t.On, t.To)
	}
	for _, h := range st.Catch {
		matcher, err := b.loader.matcher(h.Error)
		if err != nil {
			return fail(err.Error())
		}
		sb.Catch(h.Name, matcher, h.To)
	}
	for k, v := range st.Attributes {
		sb.Attr(k, v)
	}
	return nil
}

func (l *Loader) resolve(names []string) ([]domain.Action, error) {
	actions := make([]domain.Action, 0, len(names))
	for _, name := range names {
		if event, ok := strings.CutPrefix(name, EmitPrefix); ok {
			actions = append(actions, domain.Named(name, domain.Succeed(event)))
			continue
		}
		action, err := l.actions.Lookup(name)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (l *Loader) matcher(name string) (domain.ErrorMatcher, error) {
	if name == "" || name == "*" {
		return domain.MatchAny(), nil
	}
	err, ok := l.errors[name]
	if !ok {
		return nil, fmt.Errorf("unknown error '%s'", name)
	}
	return domain.MatchSentinel(err), nil
}

func mapper(ms []Mapping) (*mapping.Mapper, error) {
	rules := make([]mapping.Rule, 0, len(ms))
	for _, m := range ms {
		if m.From == "" {
			return nil, errors.New("mapping has no source")
		}
		r := mapping.Rule{Source: m.From, Target: m.To, Required: m.Required}
		if m.Default != nil {
			raw, err := json.Marshal(m.Default)
			if err != nil {
				return nil, fmt.Errorf("default of '%s': %w", m.From, err)
			}
			r.Default = string(raw)
		}
		rules = append(rules, r)
	}
	return mapping.New(rules...), nil
}
