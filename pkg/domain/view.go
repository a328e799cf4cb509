package domain

// ViewKind distinguishes what the caller must do with a ViewSelection.
type ViewKind string

const (
	// ViewApplication asks the caller to render ViewName with Model.
	ViewApplication ViewKind = "application"
	// ViewFlowEnd is the terminal view of a finished execution.
	ViewFlowEnd ViewKind = "end"
	// ViewConversationRedirect asks the caller to redirect to the conversation, whose
	// current view is then replayed.
	ViewConversationRedirect ViewKind = "conversation_redirect"
)

// ViewSelection is the result of a pause or a termination. It is a value; constructors copy the model.
type ViewSelection struct {
	Kind           ViewKind       `json:"kind"`
	ViewName       string         `json:"view_name,omitempty"`
	Model          map[string]any `json:"model,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// ApplicationView selects viewName for rendering with model.
func ApplicationView(viewName string, model map[string]any) ViewSelection {
	return ViewSelection{Kind: ViewApplication, ViewName: viewName, Model: CopyMap(model)}
}

// EndView is the terminal selection of an execution.
func EndView(viewName string, model map[string]any) ViewSelection {
	return ViewSelection{Kind: ViewFlowEnd, ViewName: viewName, Model: CopyMap(model)}
}

// ConversationRedirect asks the caller to fetch the current view of conversationID.
func ConversationRedirect(conversationID string) ViewSelection {
	return ViewSelection{Kind: ViewConversationRedirect, ConversationID: conversationID}
}

// IsRedirect reports whether the selection is a conversation redirect.
func (v ViewSelection) IsRedirect() bool { return v.Kind == ViewConversationRedirect }

// IsEnd reports whether the selection terminated the execution.
func (v ViewSelection) IsEnd() bool { return v.Kind == ViewFlowEnd }

// Clone returns a copy whose model can be mutated freely.
func (v ViewSelection) Clone() ViewSelection {
	v.Model = CopyMap(v.Model)
	return v
}
