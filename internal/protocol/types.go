package protocol

// Action names one of the closed set of operations a task can request.
type Action string

const (
	ActionFileCreate Action = "file/create"
	ActionFileEdit   Action = "file/edit"
	ActionFileDelete Action = "file/delete"
	ActionCommandRun Action = "command/run"
)

// Actions returns every supported action in declaration order.
func Actions() []Action {
	return []Action{ActionFileCreate, ActionFileEdit, ActionFileDelete, ActionCommandRun}
}

// Valid reports whether a is a member of the action enumeration.
func (a Action) Valid() bool {
	switch a {
	case ActionFileCreate, ActionFileEdit, ActionFileDelete, ActionCommandRun:
		return true
	}
	return false
}

// IsFile reports whether a is one of the file/* actions.
func (a Action) IsFile() bool {
	return a == ActionFileCreate || a == ActionFileEdit || a == ActionFileDelete
}

// Content carries a textual payload and the encoding it must be written in.
type Content struct {
	Encoding string `json:"encoding"`
	Value    string `json:"value"`
}

// TaskRequest is the wire envelope submitted by a collaborator.
type TaskRequest struct {
	ID          string            `json:"id"`
	Action      Action            `json:"action"`
	Path        string            `json:"path,omitempty"`
	Command     string            `json:"command,omitempty"`
	Arguments   []string          `json:"arguments,omitempty"`
	Content     *Content          `json:"content,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// ErrorInfo is the typed failure detail of a TaskResponse.
type ErrorInfo struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// TaskResponse is the terminal result for exactly one TaskRequest.
type TaskResponse struct {
	ID      string     `json:"id"`
	Action  Action     `json:"action"`
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// NewSuccess builds a success response for the given request header.
func NewSuccess(id string, action Action) *TaskResponse {
	return &TaskResponse{ID: id, Action: action, Success: true}
}

// NewFailure builds a failure response for the given request header. The error
// kind is derived with TypeOf, so untyped errors surface as INTERNAL_ERROR.
func NewFailure(id string, action Action, err error) *TaskResponse {
	info := &ErrorInfo{Type: TypeOf(err), Message: "unknown error"}
	if err != nil {
		info.Message = err.Error()
	}
	return &TaskResponse{ID: id, Action: action, Success: false, Error: info}
}
