package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/lootrota/internal/adapters/mq/feed"
	"github.com/okian/lootrota/pkg/logger"
)

const (
	liveReadWait   = 60 * time.Second
	livePingPeriod = liveReadWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleLive handles GET /api/v1/live. Each message names a changed
// collection; clients refetch what they show. The first message is a
// "sync" hint sent once the subscription is active.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscribe(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(r.Context(), "live upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if err := s.writeLive(conn, feed.Message{Collection: "sync", Op: "hello", At: time.Now().UTC()}); err != nil {
		return
	}

	// Reader: only control frames matter; any error ends the session.
	readErr := make(chan error, 1)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(liveReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(liveReadWait))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readErr:
			return
		case m, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
					time.Now().Add(time.Second))
				return
			}
			if err := s.writeLive(conn, m); err != nil {
				s.logger.Debug(ctx, "live write failed", logger.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.liveWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeLive(conn *websocket.Conn, m feed.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.liveWriteWait))
	return conn.WriteJSON(m)
}
