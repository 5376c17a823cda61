package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/statsboard/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// wsEnvelope wraps every WebSocket message.
type wsEnvelope struct {
	Type string           `json:"type"`
	Data store.PanelState `json:"data"`
}

var upgrader = websocket.Upgrader{
	// the dashboard is read only and unauthenticated
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams panel updates over a WebSocket, mirroring /api/sse.
//
// Every message is {"type":"panel","data":PanelState}. Incoming messages are
// read only to process control frames and detect disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	clientID := uuid.NewString()
	log := s.logger.With("client_id", clientID)
	log.Debug("ws client connected")

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				log.Debug("ws read closed", "error", err)
				return
			}
		}
	}()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	send := func(state store.PanelState) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(wsEnvelope{Type: "panel", Data: state})
	}

	for _, state := range s.store.GetAll() {
		if err := send(state); err != nil {
			log.Debug("ws initial write failed", "error", err)
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("ws ping failed", "error", err)
				return
			}
		case state, ok := <-ch:
			if !ok {
				return
			}
			if err := send(state); err != nil {
				log.Debug("ws write failed", "error", err)
				return
			}
		}
	}
}
