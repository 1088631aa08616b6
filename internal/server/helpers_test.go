package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samiralibabic/textdap/internal/config"
	"github.com/samiralibabic/textdap/internal/session"
	"github.com/samiralibabic/textdap/internal/transport/dapframe"
)

type wireMsg struct {
	Seq        int            `json:"seq"`
	Type       string         `json:"type"`
	RequestSeq int            `json:"request_seq"`
	Success    bool           `json:"success"`
	Command    string         `json:"command"`
	Message    string         `json:"message"`
	Event      string         `json:"event"`
	Body       map[string]any `json:"body"`
}

func testConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.Diagnostics.Enabled = false
	cfg.Diagnostics.MirrorOutput = false
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func newTestService(t *testing.T, mutate func(*config.Config)) *Service {
	t.Helper()
	svc, err := NewService(testConfig(mutate), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func writeProgram(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("statement %d", i+1)
	}
	return lines
}

// harness feeds framed requests into a Conn and decodes what it writes back.
type harness struct {
	t    *testing.T
	conn *Conn
	out  bytes.Buffer
	dec  *dapframe.Decoder
	seq  int
	all  []wireMsg
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	h := &harness{t: t, dec: dapframe.NewDecoder(0)}
	h.conn = newTestService(t, mutate).NewConn(session.New("test"), &h.out)
	return h
}

func (h *harness) sess() *session.Session {
	return h.conn.Session()
}

func encodeRequest(seq int, command string, args any) []byte {
	msg := map[string]any{"seq": seq, "type": "request", "command": command}
	if args != nil {
		msg["arguments"] = args
	}
	body, _ := json.Marshal(msg)
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
}

// feed writes raw bytes and returns every message produced in response.
func (h *harness) feed(raw []byte) []wireMsg {
	h.t.Helper()
	require.NoError(h.t, h.conn.Feed(raw))
	_, _ = h.dec.Write(h.out.Bytes())
	h.out.Reset()

	var msgs []wireMsg
	for {
		f, err := h.dec.Next()
		require.NoError(h.t, err)
		if f == nil {
			break
		}
		var m wireMsg
		require.NoError(h.t, json.Unmarshal(f.Raw, &m))
		msgs = append(msgs, m)
	}
	h.all = append(h.all, msgs...)
	return msgs
}

func (h *harness) request(command string, args any) []wireMsg {
	h.t.Helper()
	h.seq++
	return h.feed(encodeRequest(h.seq, command, args))
}

// launch runs initialize + launch and asserts both succeed.
func (h *harness) launch(program string, stopOnEntry bool) {
	h.t.Helper()
	h.request("initialize", map[string]any{"adapterID": "textdap"})
	msgs := h.request("launch", map[string]any{"program": program, "stopOnEntry": stopOnEntry})
	require.Len(h.t, msgs, 1)
	require.True(h.t, msgs[0].Success, msgs[0].Message)
}

func events(msgs []wireMsg) []wireMsg {
	var out []wireMsg
	for _, m := range msgs {
		if m.Type == "event" {
			out = append(out, m)
		}
	}
	return out
}
