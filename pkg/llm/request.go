// Package llm holds the wire types exchanged with the chat backend.
package llm

// ChatRequest is the payload posted to the backend's chat endpoints. The same
// payload is used for the streaming endpoint and the non-streaming fallback;
// only Stream differs.
type ChatRequest struct {
	// Model name; empty lets the backend pick its default.
	Model string `json:"model,omitempty"`

	// Conversation messages, oldest first.
	Messages []Message `json:"messages"`

	// Whether the backend should stream the response.
	Stream bool `json:"stream"`

	// ConversationID threads the request into an existing conversation.
	ConversationID string `json:"conversation_id,omitempty"`
}

// Prompt returns the content of the last user message, or "".
func (r *ChatRequest) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
