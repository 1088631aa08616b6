package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/samiralibabic/textdap/internal/diag"
	"github.com/samiralibabic/textdap/internal/protocol"
	"github.com/samiralibabic/textdap/internal/session"
	"github.com/samiralibabic/textdap/internal/transport/dapframe"
)

const readChunk = 8192

// Conn drives one session from one byte stream. Every handler runs to
// completion, including all writes it triggers, before the next frame is
// decoded.
type Conn struct {
	svc   *Service
	sess  *session.Session
	dec   *dapframe.Decoder
	enc   *dapframe.Encoder
	trace *diag.Sink
}

func newConn(svc *Service, sess *session.Session, w io.Writer) *Conn {
	c := &Conn{
		svc:   svc,
		sess:  sess,
		dec:   dapframe.NewDecoder(svc.cfg.Limits.MaxFrameBytes),
		enc:   dapframe.NewEncoder(w),
		trace: svc.trace.Sink(),
	}
	if svc.cfg.Diagnostics.MirrorOutput {
		c.trace.SetMirror(c.mirror)
	}
	return c
}

func (c *Conn) Session() *session.Session {
	return c.sess
}

// Serve reads r until EOF or until ctx is done.
func (c *Conn) Serve(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := c.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Feed appends p to the decode buffer and handles every complete frame.
func (c *Conn) Feed(p []byte) error {
	_, _ = c.dec.Write(p)
	for {
		frame, err := c.dec.Next()
		if err != nil {
			if errors.Is(err, dapframe.ErrMalformedBody) {
				c.trace.Log("JSON PARSE ERROR: %v", err)
			} else {
				c.trace.Log("FRAME DESYNC: %v", err)
			}
			continue
		}
		if frame == nil {
			return nil
		}
		c.trace.Log("DAP IN: %s", compact(frame.Raw))
		if err := c.Handle(frame.Request); err != nil {
			return err
		}
	}
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// mirror forwards diagnostic lines as output events once the client has
// completed the initialize handshake.
func (c *Conn) mirror(line string) {
	if !c.sess.Initialized() {
		return
	}
	_ = c.event(protocol.EventOutput, protocol.OutputBody(line))
}

func (c *Conn) send(msg protocol.Outbound) error {
	payload, err := c.enc.Encode(msg)
	if payload != nil {
		c.trace.Trace("DAP OUT: %s", payload)
	}
	return err
}

func (c *Conn) respond(req protocol.Request, body any) error {
	return c.send(protocol.NewResponse(req, body))
}

func (c *Conn) fail(req protocol.Request, message string) error {
	return c.send(protocol.NewErrorResponse(req, message))
}

func (c *Conn) event(name string, body any) error {
	return c.send(protocol.NewEvent(name, body))
}

func (c *Conn) stopped(reason string) error {
	return c.event(protocol.EventStopped, protocol.StoppedBody(reason))
}

// apply emits the event an Outcome calls for, if any.
func (c *Conn) apply(out session.Outcome) error {
	switch out.Kind {
	case session.OutcomeStopped:
		return c.stopped(out.Reason)
	case session.OutcomeTerminated:
		return c.event(protocol.EventTerminated, nil)
	default:
		return nil
	}
}

// respondThen sends the response for req and then the event for out.
func (c *Conn) respondThen(req protocol.Request, body any, out func() session.Outcome) error {
	if err := c.respond(req, body); err != nil {
		return err
	}
	return c.apply(out())
}
