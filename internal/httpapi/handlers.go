package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/engine"
	"github.com/DoyleJ11/rps-client/internal/history"
	"github.com/DoyleJ11/rps-client/internal/session"
	"github.com/DoyleJ11/rps-client/pkg/types"
)

type moveRequest struct {
	Move string `json:"move"`
}

type moveResponse struct {
	Accepted bool         `json:"accepted"`
	Error    string       `json:"error,omitempty"`
	State    engine.State `json:"state"`
}

type historyResponse struct {
	Rounds []history.Round `json:"rounds"`
}

func GetState(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.View(r.Context())
		if err != nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, types.SnapshotMessage{
			Type:    types.TypeStateSnapshot,
			Version: v.Version,
			State:   v.State,
		})
	}
}

// SubmitMove plays {"move":"rock"} for the current round. Moves the guard
// rejects come back as 409 with accepted=false.
func SubmitMove(s *session.Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		move, err := engine.ParseMove(req.Move)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		err = s.Submit(r.Context(), move)
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrNotPlaying), errors.Is(err, engine.ErrMoveAlreadySelected):
		case errors.Is(err, session.ErrSessionClosed):
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		default:
			log.Warn("submit move", zap.Error(err))
			http.Error(w, "submit failed", http.StatusInternalServerError)
			return
		}

		resp := moveResponse{Accepted: err == nil}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status = http.StatusConflict
		}
		if v, verr := s.View(r.Context()); verr == nil {
			resp.State = v.State
		}
		writeJSON(w, status, resp)
	}
}

// History lists finished rounds newest first; ?limit= is capped at maxLimit.
func History(store history.Store, maxLimit int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := maxLimit
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			if n < maxLimit {
				limit = n
			}
		}

		rounds, err := store.Recent(r.Context(), limit)
		if err != nil {
			log.Warn("load history", zap.Error(err))
			http.Error(w, "history unavailable", http.StatusServiceUnavailable)
			return
		}
		if rounds == nil {
			rounds = []history.Round{}
		}
		writeJSON(w, http.StatusOK, historyResponse{Rounds: rounds})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
