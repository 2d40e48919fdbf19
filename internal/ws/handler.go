package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/engine"
	"github.com/DoyleJ11/rps-client/internal/logging"
	"github.com/DoyleJ11/rps-client/internal/session"
	"github.com/DoyleJ11/rps-client/pkg/types"
)

// Handler streams session snapshots to a rendering client and accepts its
// move submissions ({"action":"move","move":"rock"}) on the same socket.
func Handler(s *session.Session, log *zap.Logger) http.HandlerFunc {
	log = logging.OrNop(log).With(zap.String("component", "render_ws"))

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// the renderer is served from the player's own machine
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		subID := uuid.NewString()

		if !post(s, session.Subscribe{ID: subID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer post(s, session.Unsubscribe{ID: subID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			defer writeCancel()
			for snap := range out {
				msg := types.SnapshotMessage{Type: types.TypeStateSnapshot, Version: snap.Version, State: snap.State}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				err := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
			// session dropped us or shut down
			conn.Close(websocket.StatusGoingAway, "session closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(writeCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("render client read", zap.String("sub", subID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil || cm.Action != types.ActionMove {
				_ = conn.Write(writeCtx, websocket.MessageText, []byte(`{"type":"Error","error":"bad message"}`))
				continue
			}
			move, err := engine.ParseMove(cm.Move)
			if err != nil {
				_ = conn.Write(writeCtx, websocket.MessageText, []byte(`{"type":"Error","error":"unknown move"}`))
				continue
			}

			// rejected moves are no-ops; the next snapshot shows the outcome
			post(s, session.SubmitMove{Move: move})
		}
	}
}

func post(s *session.Session, m session.Msg) bool {
	select {
	case s.Inbox() <- m:
		return true
	case <-s.Done():
		return false
	}
}
