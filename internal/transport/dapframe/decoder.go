// Package dapframe implements the Content-Length framing used by the Debug
// Adapter Protocol.
package dapframe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/samiralibabic/textdap/internal/protocol"
)

var (
	// ErrMissingContentLength reports a header block without a usable
	// Content-Length. The block has already been discarded.
	ErrMissingContentLength = errors.New("header has no valid Content-Length")

	// ErrMalformedBody reports a complete body that is not valid JSON. The
	// body has already been discarded.
	ErrMalformedBody = errors.New("malformed message body")
)

var (
	headerTerminator = []byte("\r\n\r\n")
	contentLengthRE  = regexp.MustCompile(`(?i)Content-Length:\s*(\d+)`)
)

// Frame is one decoded message together with the body bytes it came from.
type Frame struct {
	Raw     json.RawMessage
	Request protocol.Request
}

// Decoder reassembles frames from bytes that may arrive in arbitrary chunks.
// It is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	pending int
	maxBody int
}

// NewDecoder returns a decoder. maxBody <= 0 disables the size check.
func NewDecoder(maxBody int) *Decoder {
	return &Decoder{pending: -1, maxBody: maxBody}
}

// Write appends p to the buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next extracts the next complete frame. It returns (nil, nil) when more bytes
// are needed. A non-nil error means the offending bytes were dropped and the
// caller may keep calling Next.
func (d *Decoder) Next() (*Frame, error) {
	if d.pending < 0 {
		idx := bytes.Index(d.buf, headerTerminator)
		if idx < 0 {
			return nil, nil
		}
		header := string(d.buf[:idx])
		d.consume(idx + len(headerTerminator))
		n, err := d.contentLength(header)
		if err != nil {
			return nil, err
		}
		d.pending = n
	}
	if len(d.buf) < d.pending {
		return nil, nil
	}

	body := make([]byte, d.pending)
	copy(body, d.buf[:d.pending])
	d.consume(d.pending)
	d.pending = -1

	req, err := protocol.DecodeRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return &Frame{Raw: body, Request: req}, nil
}

func (d *Decoder) contentLength(header string) (int, error) {
	m := contentLengthRE.FindStringSubmatch(header)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingContentLength, header)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingContentLength, err)
	}
	if d.maxBody > 0 && n > d.maxBody {
		return 0, fmt.Errorf("%w: %d exceeds maximum %d", ErrMissingContentLength, n, d.maxBody)
	}
	return n, nil
}

func (d *Decoder) consume(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
}
