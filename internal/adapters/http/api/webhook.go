package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/internal/domain/rank"
	"github.com/okian/giteval/internal/domain/signature"
	"github.com/okian/giteval/pkg/metrics"
)

// maxBodyBytes bounds evaluation payloads; feedback text is short prose.
const maxBodyBytes = 1 << 20

// WebhookHandler receives evaluation callbacks from the grading pipeline.
type WebhookHandler struct {
	svc      *app.Service
	verifier *signature.Verifier
	header   string
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(svc *app.Service, verifier *signature.Verifier) *WebhookHandler {
	return &WebhookHandler{svc: svc, verifier: verifier, header: DefaultSignatureHeader}
}

type evalResponse struct {
	Status              string      `json:"status"`
	ExternalIdentity    string      `json:"external_identity"`
	OldRank             rank.Symbol `json:"old_rank"`
	NewRank             rank.Symbol `json:"new_rank"`
	Score               int         `json:"score"`
	Promoted            bool        `json:"promoted"`
	ReconciliationError string      `json:"reconciliation_error,omitempty"`
}

// HandleEval handles POST /webhook/eval.
//
// The signature is checked over the raw body bytes before anything is
// parsed; a request that fails authentication is never processed.
func (h *WebhookHandler) HandleEval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := h.verifier.Verify(body, r.Header.Get(h.header)); err != nil {
		metrics.RecordSignatureFailure()
		writeError(w, http.StatusUnauthorized, "invalid_signature", err)
		return
	}

	var report model.EvaluationReport
	if err := json.Unmarshal(body, &report); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	outcome, err := h.svc.ProcessEvaluation(r.Context(), report, r.Header.Get(DeliveryIDHeader))
	switch {
	case errors.Is(err, app.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "not_registered", err)
		return
	case errors.Is(err, rank.ErrNegativeDelta), errors.Is(err, model.ErrMissingHandle):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case err != nil:
		// Store unavailable or write failure: the client must retry, the
		// score update is never silently dropped.
		writeError(w, http.StatusServiceUnavailable, "store_failure", err)
		return
	}

	status := "ok"
	if outcome.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, evalResponse{
		Status:              status,
		ExternalIdentity:    outcome.ExternalIdentity,
		OldRank:             outcome.OldRank,
		NewRank:             outcome.NewRank,
		Score:               outcome.Score,
		Promoted:            outcome.Promoted,
		ReconciliationError: outcome.ReconciliationError,
	})
}
