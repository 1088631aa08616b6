package dapframe

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/samiralibabic/textdap/internal/protocol"
)

// Encoder writes framed messages and owns the outbound sequence counter,
// shared by responses and events. The first message gets seq 1.
type Encoder struct {
	w   io.Writer
	mu  sync.Mutex
	seq int
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode stamps msg with the next sequence number and writes the whole frame
// in a single Write. It returns the JSON body that was written.
func (e *Encoder) Encode(msg protocol.Outbound) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg.SetSeq(e.seq + 1)
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	e.seq++

	frame := make([]byte, 0, len(payload)+32)
	frame = append(frame, "Content-Length: "...)
	frame = strconv.AppendInt(frame, int64(len(payload)), 10)
	frame = append(frame, "\r\n\r\n"...)
	frame = append(frame, payload...)
	if _, err := e.w.Write(frame); err != nil {
		return payload, fmt.Errorf("write frame: %w", err)
	}
	return payload, nil
}

// Seq returns the last sequence number handed out.
func (e *Encoder) Seq() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}
