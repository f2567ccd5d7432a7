package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12
)

// wsEnvelope frames every message on the live feed.
type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS streams a state snapshot on connect and after every change.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", sl.Err(err))
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	changes, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go readPump(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.sendState(conn); err != nil {
		s.log.Debug("ws initial write failed", sl.Err(err))
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.sendState(conn); err != nil {
				s.log.Debug("ws write failed", sl.Err(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendState(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "state", Data: s.store.Snapshot()})
}

// readPump drains client frames so control messages are processed, and
// closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
