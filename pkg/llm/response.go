package llm

import "encoding/json"

// responseTextFields are the top-level fields of a non-streaming response
// that may carry the full text, in priority order.
var responseTextFields = []string{"content", "text", "response", "message"}

// ChatResponse is the body of a non-streaming chat response. The backend has
// used several shapes over time; Text returns whichever one is present.
type ChatResponse struct {
	fields map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ChatResponse) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.fields)
}

// Text returns the response text. A "message" field may be a plain string or
// a Message object.
func (r *ChatResponse) Text() string {
	for _, field := range responseTextFields {
		raw, ok := r.fields[field]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}

		var m Message
		if err := json.Unmarshal(raw, &m); err == nil && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
