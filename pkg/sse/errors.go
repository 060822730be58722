package sse

// ProtocolError is reported when the backend signals a failure mid-stream
// with "event: error". Text delivered before it remains valid.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "stream error: " + e.Message
}
