package llm

// ErrorResponse is the JSON error body returned by the opsdeck API.
type ErrorResponse struct {
	Error string `json:"error"`
}
