package engine

import "encoding/json"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is one chat completion call.
type Request struct {
	Model       string
	Messages    []Message
	Schema      *Schema
	Temperature float64
}

// Schema names the JSON document the reply must conform to.
// Definition is a complete JSON schema object.
type Schema struct {
	Name       string
	Definition json.RawMessage
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
