package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/history"
	"github.com/DoyleJ11/rps-client/internal/logging"
	"github.com/DoyleJ11/rps-client/internal/session"
	"github.com/DoyleJ11/rps-client/internal/ws"
)

type Deps struct {
	Session *session.Session
	History history.Store
	// HistoryLimit caps GET /history.
	HistoryLimit int
	// Gatherer serves /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := logging.OrNop(d.Logger).With(zap.String("component", "httpapi"))
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = 50
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/state", GetState(d.Session))
	r.Post("/move", SubmitMove(d.Session, log))
	r.Get("/ws", ws.Handler(d.Session, d.Logger))
	if d.History != nil {
		r.Get("/history", History(d.History, d.HistoryLimit, log))
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
