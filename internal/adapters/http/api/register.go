package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/domain/rank"
)

// RegisterHandler serves the admin registration endpoint.
type RegisterHandler struct {
	svc *app.Service
}

// NewRegisterHandler creates the registration handler.
func NewRegisterHandler(svc *app.Service) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

type registerRequest struct {
	ExternalIdentity string `json:"external_identity"`
	LinkedHandle     string `json:"linked_handle"`
	ConfirmToken     string `json:"confirm_token,omitempty"`
}

func (r registerRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ExternalIdentity) == "":
		return errors.New("missing external_identity")
	case strings.TrimSpace(r.LinkedHandle) == "":
		return errors.New("missing linked_handle")
	}
	return nil
}

type registerResponse struct {
	Status              string      `json:"status"`
	ExternalIdentity    string      `json:"external_identity"`
	LinkedHandle        string      `json:"linked_handle"`
	Rank                rank.Symbol `json:"rank,omitempty"`
	RankName            string      `json:"rank_name,omitempty"`
	Score               int         `json:"score"`
	ConfirmToken        string      `json:"confirm_token,omitempty"`
	ReconciliationError string      `json:"reconciliation_error,omitempty"`
}

// HandleRegister handles POST /register. Overwriting an existing
// registration is destructive and demands the confirmation token from the
// 409 response of the initial attempt.
func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.svc.Register(r.Context(), req.ExternalIdentity, req.LinkedHandle, req.ConfirmToken)
	switch {
	case errors.Is(err, app.ErrConfirmationRequired):
		writeJSON(w, http.StatusConflict, registerResponse{
			Status:           "confirmation_required",
			ExternalIdentity: res.ExternalIdentity,
			LinkedHandle:     res.LinkedHandle,
			ConfirmToken:     res.ConfirmToken,
		})
		return
	case errors.Is(err, app.ErrBadConfirmation):
		writeError(w, http.StatusForbidden, "bad_confirmation", err)
		return
	case errors.Is(err, app.ErrUnknownUser):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "store_failure", err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Status:              "registered",
		ExternalIdentity:    res.ExternalIdentity,
		LinkedHandle:        res.LinkedHandle,
		Rank:                res.Rank,
		RankName:            res.RankName,
		Score:               res.Score,
		ReconciliationError: res.ReconciliationError,
	})
}
