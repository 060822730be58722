package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	fieldEvent = "event:"
	fieldData  = "data:"

	doneSentinel = "[DONE]"
	errorEvent   = "error"

	unknownError = "unknown stream error"
)

// deltaFields are the JSON object fields that may carry delta text, in
// priority order.
var deltaFields = []string{"content", "text", "chunk"}

// Decoder incrementally turns raw response chunks into events. Chunks may
// split lines, and multi-byte characters, at any byte.
//
// A Decoder is owned by a single stream and is not safe for concurrent use.
type Decoder struct {
	// carry holds the unterminated tail of the input. It never contains '\n'.
	carry []byte

	// pendingEvent is the name from the last "event:" line. It applies to
	// the next data line only.
	pendingEvent string

	halted bool
}

// NewDecoder returns a Decoder ready for the first chunk.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the carried input and decodes every complete line.
// It returns zero or more events. Once a done or error event has been
// returned, Feed and Flush return nothing.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.halted {
		return nil
	}

	d.carry = append(d.carry, chunk...)

	var (
		events []Event
		start  int
	)
	for !d.halted {
		nl := bytes.IndexByte(d.carry[start:], '\n')
		if nl < 0 {
			break
		}

		line := d.carry[start : start+nl]
		start += nl + 1

		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}

	switch {
	case d.halted:
		d.carry = nil
	case start > 0:
		d.carry = append(d.carry[:0], d.carry[start:]...)
	}

	return events
}

// Flush decodes any unterminated trailing line. Call it when the transport
// reports end of data.
func (d *Decoder) Flush() []Event {
	if d.halted || len(d.carry) == 0 {
		return nil
	}

	line := d.carry
	d.carry = nil

	if ev, ok := d.decodeLine(line); ok {
		return []Event{ev}
	}
	return nil
}

// Halted reports whether a terminal event has been decoded.
func (d *Decoder) Halted() bool {
	return d.halted
}

func (d *Decoder) decodeLine(raw []byte) (Event, bool) {
	line := strings.TrimSpace(string(raw))

	switch {
	case strings.HasPrefix(line, fieldEvent):
		d.pendingEvent = strings.TrimSpace(line[len(fieldEvent):])
		return Event{}, false
	case strings.HasPrefix(line, fieldData):
	default:
		return Event{}, false
	}

	payload := strings.TrimSpace(line[len(fieldData):])
	isError := d.pendingEvent == errorEvent
	d.pendingEvent = ""

	if payload == doneSentinel {
		d.halted = true
		return Event{Kind: KindDone}, true
	}

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		if isError {
			d.halted = true
			return Event{Kind: KindError, Message: orUnknown(payload)}, true
		}

		// Malformed payloads are shown as literal text.
		if payload == "" {
			return Event{}, false
		}
		return Event{Kind: KindDelta, Text: payload}, true
	}

	if isError {
		d.halted = true
		return Event{Kind: KindError, Message: errorMessage(v, payload)}, true
	}

	text := deltaText(v)
	if text == "" {
		return Event{}, false
	}
	return Event{Kind: KindDelta, Text: text}, true
}

func deltaText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, field := range deltaFields {
			if s, ok := t[field].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// errorMessage extracts a message from {"error": "..."}, the common
// {"error": {"message": "..."}} shape, {"message": "..."} or a bare string.
func errorMessage(v any, payload string) string {
	switch t := v.(type) {
	case string:
		return orUnknown(t)
	case map[string]any:
		switch e := t["error"].(type) {
		case string:
			return orUnknown(e)
		case map[string]any:
			if msg, ok := e["message"].(string); ok {
				return orUnknown(msg)
			}
		}
		if msg, ok := t["message"].(string); ok {
			return orUnknown(msg)
		}
	}
	return orUnknown(payload)
}

func orUnknown(msg string) string {
	if msg == "" {
		return unknownError
	}
	return msg
}
