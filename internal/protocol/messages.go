// Package protocol defines the Debug Adapter Protocol envelopes and bodies
// spoken by textdap. Bodies reuse github.com/google/go-dap types wherever the
// standard shape matches what the adapter sends.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Request is an inbound message. Only messages whose Type is "request" are
// dispatched; Arguments stays raw until a handler decodes it.
type Request struct {
	dap.ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (r Request) IsRequest() bool {
	return r.Type == TypeRequest
}

// DecodeRequest parses an inbound body. Only invalid JSON is an error: an
// envelope with mistyped fields is read field by field, and a field that
// cannot be read is left at its zero value.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(body, &req)
	if err == nil {
		return req, nil
	}
	if !json.Valid(body) {
		return Request{}, err
	}
	return looseRequest(body), nil
}

func looseRequest(body []byte) Request {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		return Request{}
	}
	var req Request
	_ = json.Unmarshal(fields["type"], &req.Type)
	_ = json.Unmarshal(fields["command"], &req.Command)
	req.Seq = looseInt(fields["seq"])
	req.Arguments = fields["arguments"]
	return req
}

// looseInt accepts a JSON number or a numeric string.
func looseInt(raw json.RawMessage) int {
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int(f)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

type Response struct {
	dap.ProtocolMessage
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body"`
}

type Event struct {
	dap.ProtocolMessage
	Event string `json:"event"`
	Body  any    `json:"body"`
}

// Outbound is implemented by messages the encoder stamps with a sequence number.
type Outbound interface {
	SetSeq(seq int)
}

func (r *Response) SetSeq(seq int) { r.Seq = seq }

func (e *Event) SetSeq(seq int) { e.Seq = seq }

// Empty marshals as {}.
type Empty struct{}

func NewResponse(req Request, body any) *Response {
	if body == nil {
		body = Empty{}
	}
	return &Response{
		ProtocolMessage: dap.ProtocolMessage{Type: TypeResponse},
		RequestSeq:      req.Seq,
		Success:         true,
		Command:         req.Command,
		Body:            body,
	}
}

func NewErrorResponse(req Request, message string) *Response {
	resp := NewResponse(req, nil)
	resp.Success = false
	resp.Message = message
	return resp
}

func NewEvent(name string, body any) *Event {
	if body == nil {
		body = Empty{}
	}
	return &Event{
		ProtocolMessage: dap.ProtocolMessage{Type: TypeEvent},
		Event:           name,
		Body:            body,
	}
}

// DecodeArguments unmarshals raw request arguments. Absent arguments decode to
// the zero value.
func DecodeArguments[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode arguments: %w", err)
	}
	return v, nil
}
