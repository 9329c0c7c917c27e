package rest

import (
	"context"
	"log/slog"
	"net/http"
)

type storeClock interface {
	ServerTime(ctx context.Context) (int64, error)
}

type PingHandler interface {
	PingHandler(w http.ResponseWriter, r *http.Request)
}

type pingHandler struct {
	logger *slog.Logger
	store  storeClock
}

func NewPingHandler(logger *slog.Logger, store storeClock) PingHandler {
	return &pingHandler{
		logger: logger.With("component", "ping-handler"),
		store:  store,
	}
}

// PingHandler answers pong while the match store is reachable.
func (that *pingHandler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := that.store.ServerTime(r.Context()); err != nil {
		that.logger.Warn("match store unreachable", "error", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}
