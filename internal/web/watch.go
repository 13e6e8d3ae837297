package web

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	watchBuffer       = 256
	watchWriteTimeout = 10 * time.Second
)

// handleWatch streams the caller's slot events over a websocket. The first
// frame is a "session" event carrying the current stage; every later frame is
// a turn event in publication order.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	slot := s.slot(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "client_id", slot.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the client; this also notices when it goes away.
	ctx := conn.CloseRead(r.Context())

	events, cancel := slot.Hub.Subscribe(watchBuffer)
	defer cancel()
	s.logger.Info("watcher connected", "client_id", slot.ID)

	snapshot := s.service.Snapshot(slot)
	if err := s.writeEvent(ctx, conn, watchEvent{Type: "session", Stage: string(snapshot.Stage)}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher disconnected", "client_id", slot.ID)
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := s.writeEvent(ctx, conn, newWatchEvent(ev)); err != nil {
				s.logger.Debug("websocket write failed", "client_id", slot.ID, "error", err)
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev watchEvent) error {
	ctx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
