// Package messages holds the transport envelope that wraps application
// payloads at the boundary of the message bus.
package messages

// Envelope carries zero or more logical messages together with metadata
// headers. It is a plain value owned by one caller at a time.
type Envelope struct {
	// Headers of this envelope, e.g. the address of the sender. Values are
	// dynamically typed; use Header for string lookups.
	Headers map[string]any

	// Messages are the logical messages carried by this envelope. Nil and
	// empty are equivalent.
	Messages []any
}

// New returns an envelope with an empty header map and the given messages.
func New(msgs ...any) *Envelope {
	return &Envelope{
		Headers:  make(map[string]any),
		Messages: msgs,
	}
}

// Header returns the header stored under key when its value is a string.
// Missing keys and values of any other type report false.
func (e *Envelope) Header(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	s, ok := e.Headers[key].(string)
	return s, ok
}

// SetHeader stores value under key.
func (e *Envelope) SetHeader(key string, value any) {
	if e.Headers == nil {
		e.Headers = make(map[string]any)
	}
	e.Headers[key] = value
}

// Label returns a short description of the carried messages for logs.
func (e *Envelope) Label() string {
	if e == nil {
		return Label(nil)
	}
	return Label(e.Messages)
}
