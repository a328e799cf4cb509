package document

// Document is the YAML form of one flow.
//
//	id: checkout
//	start: cart
//	catch:
//	  - { name: any, error: "*", to: failed }
//	states:
//	  - id: cart
//	    type: view
//	    on:
//	      - { on: next, to: pay }
//	  - id: pay
//	    type: action
//	    actions: [charge]
//	    on:
//	      - { on: success, to: done }
//	  - { id: done, type: end, view: receipt }
type Document struct {
	ID         string         `mapstructure:"id"`
	Start      string         `mapstructure:"start"`
	Input      []Mapping      `mapstructure:"input"`
	Attributes map[string]any `mapstructure:"attributes"`
	Global     []Transition   `mapstructure:"global"`
	Catch      []Handler      `mapstructure:"catch"`
	States     []State        `mapstructure:"states"`

	// Source is the file the document was read from, if any.
	Source string `mapstructure:"-"`
}

// State types.
const (
	TypeView    = "view"
	TypeAction  = "action"
	TypeSubflow = "subflow"
	TypeEnd     = "end"
)

// State describes one state. Fields that do not apply to the type are rejected.
type State struct {
	ID         string         `mapstructure:"id"`
	Type       string         `mapstructure:"type"`
	View       string         `mapstructure:"view"`
	Model      []string       `mapstructure:"model"`
	Redirect   bool           `mapstructure:"redirect"`
	Entry      []string       `mapstructure:"entry"`
	Actions    []string       `mapstructure:"actions"`
	Flow       string         `mapstructure:"flow"`
	Input      []Mapping      `mapstructure:"input"`
	Output     []Mapping      `mapstructure:"output"`
	On         []Transition   `mapstructure:"on"`
	Catch      []Handler      `mapstructure:"catch"`
	Attributes map[string]any `mapstructure:"attributes"`
}

// Transition routes an event (an id, "*" or a glob) to a target state.
type Transition struct {
	On string `mapstructure:"on"`
	To string `mapstructure:"to"`
}

// Handler routes errors to a target state. Error is "*" or a name registered with WithError.
type Handler struct {
	Name  string `mapstructure:"name"`
	Error string `mapstructure:"error"`
	To    string `mapstructure:"to"`
}

// Mapping copies one attribute. A bare string "key" is shorthand for {from: key}.
// From is a gjson path; To defaults to From.
type Mapping struct {
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Required bool   `mapstructure:"required"`
	Default  any    `mapstructure:"default"`
}
