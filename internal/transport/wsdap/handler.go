// Package wsdap carries Debug Adapter Protocol frames over WebSocket. Inbound
// message payloads are raw frame bytes and may split or join frames freely;
// every outbound frame is sent as one text message.
package wsdap

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn consumes inbound bytes, writing any replies to the writer it was
// opened with.
type Conn interface {
	Feed(p []byte) error
}

// OpenFunc creates the per-connection state. release is called when the
// socket closes.
type OpenFunc func(remoteAddr string, w io.Writer) (conn Conn, release func(), err error)

func Handler(open OpenFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		conn, release, err := open(r.RemoteAddr, &messageWriter{ws: ws})
		if err != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
			_ = ws.WriteMessage(websocket.CloseMessage, msg)
			return
		}
		defer release()

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.Feed(payload); err != nil {
				return
			}
		}
	}
}

// messageWriter turns each Write into one WebSocket text message.
type messageWriter struct {
	ws *websocket.Conn
}

func (m *messageWriter) Write(p []byte) (int, error) {
	if err := m.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
