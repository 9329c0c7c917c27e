package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

type matchReader interface {
	Get(ctx context.Context, code string) (*entity.Match, error)
}

type MatchHandler interface {
	GetMatch(w http.ResponseWriter, r *http.Request)
}

type matchHandler struct {
	logger  *slog.Logger
	matches matchReader
}

func NewMatchHandler(logger *slog.Logger, matches matchReader) MatchHandler {
	return &matchHandler{
		logger:  logger.With("component", "match-handler"),
		matches: matches,
	}
}

func (that *matchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := entity.ValidateCode(code); err != nil {
		http.Error(w, "Invalid match code", http.StatusBadRequest)
		return
	}

	match, err := that.matches.Get(r.Context(), code)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}

	if err != nil {
		that.logger.Error("failed to read match", "code", code, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(match); err != nil {
		that.logger.Error("failed to write match", "code", code, "error", err)
	}
}
