package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/domain/rank"
)

// StatusHandler serves per-user standing queries.
type StatusHandler struct {
	svc *app.Service
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(svc *app.Service) *StatusHandler {
	return &StatusHandler{svc: svc}
}

type statusResponse struct {
	LinkedHandle     string      `json:"linked_handle"`
	Rank             rank.Symbol `json:"rank"`
	RankName         string      `json:"rank_name"`
	Score            int         `json:"score"`
	RemainingToNext  *int        `json:"remaining_to_next,omitempty"`
	ProgressFraction *float64    `json:"progress_fraction,omitempty"`
}

// HandleStatus handles GET /status/{external_identity}.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	identity := strings.TrimPrefix(r.URL.Path, "/status/")
	if identity == "" || strings.Contains(identity, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	status, err := h.svc.Status(r.Context(), identity)
	switch {
	case errors.Is(err, app.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		LinkedHandle:     status.LinkedHandle,
		Rank:             status.Rank,
		RankName:         status.RankName,
		Score:            status.Score,
		RemainingToNext:  status.RemainingToNext,
		ProgressFraction: status.ProgressFraction,
	})
}
