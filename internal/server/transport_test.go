package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiralibabic/textdap/internal/config"
)

func initializeRequest(seq int) *dap.InitializeRequest {
	return &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{AdapterID: "textdap", LinesStartAt1: true},
	}
}

func launchRequest(t *testing.T, seq int, program string) *dap.LaunchRequest {
	t.Helper()
	args, err := json.Marshal(map[string]any{"program": program, "stopOnEntry": true})
	require.NoError(t, err)
	return &dap.LaunchRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
			Command:         "launch",
		},
		Arguments: args,
	}
}

func request(seq int, command string) *dap.Request {
	return &dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
}

// runHandshake drives initialize, launch, configurationDone and stackTrace
// over a stream and checks every reply in order.
func runHandshake(t *testing.T, w io.Writer, r *bufio.Reader, program string) {
	t.Helper()

	require.NoError(t, dap.WriteProtocolMessage(w, initializeRequest(1)))
	msg, err := dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	initResp, ok := msg.(*dap.InitializeResponse)
	require.True(t, ok, "expected InitializeResponse, got %T", msg)
	assert.Equal(t, 1, initResp.Seq)
	assert.Equal(t, 1, initResp.RequestSeq)
	assert.True(t, initResp.Body.SupportsConfigurationDoneRequest)
	assert.True(t, initResp.Body.SupportsTerminateRequest)

	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	initialized, ok := msg.(*dap.InitializedEvent)
	require.True(t, ok, "expected InitializedEvent, got %T", msg)
	assert.Equal(t, 2, initialized.Seq)

	require.NoError(t, dap.WriteProtocolMessage(w, launchRequest(t, 2, program)))
	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	launchResp, ok := msg.(*dap.LaunchResponse)
	require.True(t, ok, "expected LaunchResponse, got %T", msg)
	assert.True(t, launchResp.Success, launchResp.Message)

	require.NoError(t, dap.WriteProtocolMessage(w, request(3, "configurationDone")))
	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	_, ok = msg.(*dap.ConfigurationDoneResponse)
	require.True(t, ok, "expected ConfigurationDoneResponse, got %T", msg)

	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	stopped, ok := msg.(*dap.StoppedEvent)
	require.True(t, ok, "expected StoppedEvent, got %T", msg)
	assert.Equal(t, "entry", stopped.Body.Reason)
	assert.Equal(t, 1, stopped.Body.ThreadId)

	require.NoError(t, dap.WriteProtocolMessage(w, request(4, "stackTrace")))
	msg, err = dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	trace, ok := msg.(*dap.StackTraceResponse)
	require.True(t, ok, "expected StackTraceResponse, got %T", msg)
	require.Len(t, trace.Body.StackFrames, 1)
	assert.Equal(t, 1, trace.Body.StackFrames[0].Line)
	assert.Equal(t, program, trace.Body.StackFrames[0].Source.Path)
	assert.Equal(t, 6, trace.Seq)
}

func TestStdioSession(t *testing.T) {
	svc := newTestService(t, nil)
	program := writeProgram(t, numberedLines(5)...)

	client, server := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- RunStdio(context.Background(), svc, server, server)
	}()

	runHandshake(t, client, bufio.NewReader(client), program)

	require.NoError(t, client.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio session did not end after EOF")
	}
	assert.Equal(t, 0, svc.Sessions().Count())
}

func startTCP(t *testing.T, svc *Service) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeTCP(ctx, svc, ln) }()

	return ln.Addr().String(), func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("tcp server did not stop")
		}
	}
}

func TestTCPSessionsAreIndependent(t *testing.T) {
	svc := newTestService(t, nil)
	program := writeProgram(t, numberedLines(3)...)
	addr, stop := startTCP(t, svc)
	defer stop()

	for i := 0; i < 2; i++ {
		nc, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		runHandshake(t, nc, bufio.NewReader(nc), program)
		assert.Eventually(t, func() bool { return svc.Sessions().Count() >= 1 }, time.Second, 10*time.Millisecond)
		require.NoError(t, nc.Close())
	}
	assert.Eventually(t, func() bool { return svc.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTCPRejectsOverLimit(t *testing.T) {
	svc := newTestService(t, func(cfg *config.Config) {
		cfg.Limits.MaxConcurrentSessions = 1
	})
	addr, stop := startTCP(t, svc)
	defer stop()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return svc.Sessions().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, dap.WriteProtocolMessage(first, initializeRequest(1)))
	msg, err := dap.ReadProtocolMessage(bufio.NewReader(first))
	require.NoError(t, err)
	assert.IsType(t, &dap.InitializeResponse{}, msg)
}

func TestWebSocketSession(t *testing.T) {
	svc := newTestService(t, nil)
	srv := httptest.NewServer(svc.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/dap"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var frame bytes.Buffer
	require.NoError(t, dap.WriteProtocolMessage(&frame, initializeRequest(1)))
	raw := frame.Bytes()
	// split one frame over two messages
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw[:10]))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw[10:]))

	read := func() dap.Message {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, payload, err := ws.ReadMessage()
		require.NoError(t, err)
		msg, err := dap.ReadProtocolMessage(bufio.NewReader(bytes.NewReader(payload)))
		require.NoError(t, err)
		return msg
	}

	resp, ok := read().(*dap.InitializeResponse)
	require.True(t, ok)
	assert.Equal(t, 1, resp.Seq)
	ev, ok := read().(*dap.InitializedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, ev.Seq)
	assert.Equal(t, 1, svc.Sessions().Count())

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return svc.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketOverLimit(t *testing.T) {
	svc := newTestService(t, func(cfg *config.Config) {
		cfg.Limits.MaxConcurrentSessions = 1
	})
	srv := httptest.NewServer(svc.WSHandler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/dap"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return svc.Sessions().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
}
