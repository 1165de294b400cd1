package surface

import (
	"encoding/json"
	"fmt"
)

// Envelope is the unit of exchange with the rendering surface. Inbound
// envelopes carry positional Args; outbound envelopes carry a Payload.
type Envelope struct {
	Command Command           `json:"command"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Payload any               `json:"payload,omitempty"`
}

// NewEnvelope builds an outbound envelope.
func NewEnvelope(cmd Command, payload any) *Envelope {
	return &Envelope{Command: cmd, Payload: payload}
}

// NumArgs returns the number of positional arguments.
func (e *Envelope) NumArgs() int {
	return len(e.Args)
}

// Arg decodes positional argument i into out.
func (e *Envelope) Arg(i int, out any) error {
	if i < 0 || i >= len(e.Args) {
		return fmt.Errorf("surface: %s: %w %d", e.Command, ErrMissingArg, i)
	}
	if err := json.Unmarshal(e.Args[i], out); err != nil {
		return fmt.Errorf("surface: %s: decode arg %d: %w", e.Command, i, err)
	}
	return nil
}

// StringArg decodes positional argument i as a string.
func (e *Envelope) StringArg(i int) (string, error) {
	var s string
	err := e.Arg(i, &s)
	return s, err
}

// IntArg decodes positional argument i as an int.
func (e *Envelope) IntArg(i int) (int, error) {
	var n int
	err := e.Arg(i, &n)
	return n, err
}

// FloatArg decodes positional argument i as a float64.
func (e *Envelope) FloatArg(i int) (float64, error) {
	var f float64
	err := e.Arg(i, &f)
	return f, err
}
