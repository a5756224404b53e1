package omr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BusinessError is a failure the backend reported in its response body, either
// as an "error" field in a 2xx response or a "detail" field in a non-2xx one.
// Message is meant to be shown to the user verbatim.
type BusinessError struct {
	Op      string
	Status  int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: backend error (status %d): %s", e.Op, e.Status, e.Message)
}

// TransportError is a failure that produced no usable response body: the request
// could not be sent, the body was not JSON, or a required field was missing.
type TransportError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrMissingField is wrapped by TransportError when a success body lacks its payload.
var ErrMissingField = errors.New("response missing required field")

// BusinessMessage returns the backend's message if err is a BusinessError.
func BusinessMessage(err error) (string, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message, true
	}
	return "", false
}

// envelope holds the error fields every endpoint may carry.
type envelope struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// message extracts a user-facing message from either error shape.
func (e envelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	return detailMessage(e.Detail)
}

// detailMessage handles both a plain string detail and FastAPI's validation list
// ([{"loc": [...], "msg": "...", "type": "..."}]).
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(raw))
}
