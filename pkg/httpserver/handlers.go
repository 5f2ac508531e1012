package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/internal/circuitbreaker"
	"github.com/mserran2/triarb/internal/engine"
	"github.com/mserran2/triarb/pkg/types"
)

// apiHandler serves the engine control endpoints.
type apiHandler struct {
	executor Executor
	breaker  Halter
	logger   *zap.Logger
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SubmitResponse is the body returned by POST /api/v1/opportunities. Record
// is absent for refusals that do not emit one (busy, halted, rate budget).
type SubmitResponse struct {
	Outcome string             `json:"outcome"`
	Record  *types.TradeRecord `json:"record,omitempty"`
}

// ConfirmRequest is the body accepted by POST /api/v1/confirm.
type ConfirmRequest struct {
	Token string `json:"token"`
}

// StatusResponse is the body returned by GET /api/v1/status.
type StatusResponse struct {
	Engine  engine.Status          `json:"engine"`
	Breaker *circuitbreaker.Status `json:"breaker,omitempty"`
}

// handleSubmit handles POST /api/v1/opportunities. The body is a detector
// opportunity; the engine runs the cycle synchronously, so the response
// returns only after the submission reached a terminal outcome.
func (h *apiHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var opp types.Opportunity

	err := json.NewDecoder(r.Body).Decode(&opp)
	if err != nil {
		writeError(h.logger, w, fmt.Sprintf("decode opportunity: %v", err), http.StatusBadRequest)
		return
	}

	h.logger.Debug("opportunity-received", zap.String("path", opp.Path()))

	outcome, rec := h.executor.Submit(r.Context(), &opp)

	writeJSON(h.logger, w, statusForOutcome(outcome), SubmitResponse{
		Outcome: string(outcome),
		Record:  rec,
	})
}

// handleConfirm handles POST /api/v1/confirm. It delivers an operator token
// to the cycle waiting on manual confirmation; 409 means no cycle is waiting.
func (h *apiHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(h.logger, w, fmt.Sprintf("decode confirmation: %v", err), http.StatusBadRequest)
		return
	}

	err = h.executor.Confirm(req.Token)
	if err != nil {
		writeError(h.logger, w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// handleStatus handles GET /api/v1/status.
func (h *apiHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Engine: h.executor.Status()}

	if h.breaker != nil {
		st := h.breaker.GetStatus()
		resp.Breaker = &st
	}

	writeJSON(h.logger, w, http.StatusOK, resp)
}

// handleBreakerReset handles POST /api/v1/breaker/reset. It clears a latched
// breaker after an operator has verified balances by hand.
func (h *apiHandler) handleBreakerReset(w http.ResponseWriter, _ *http.Request) {
	if h.breaker == nil {
		writeError(h.logger, w, "no breaker configured", http.StatusNotFound)
		return
	}

	h.breaker.Reset()
	h.logger.Info("breaker-reset-requested")
	writeJSON(h.logger, w, http.StatusOK, map[string]string{"status": "reset"})
}

// statusForOutcome maps a submission outcome to an HTTP status. Executed
// cycles are 200 regardless of trade success: the submission itself was
// processed to a terminal record.
func statusForOutcome(out engine.Outcome) int {
	switch out {
	case engine.OutcomeExecutedOK, engine.OutcomeExecutedFail:
		return http.StatusOK
	case engine.OutcomeRejectedBusy:
		return http.StatusTooManyRequests
	case engine.OutcomeRejectedHalted:
		return http.StatusServiceUnavailable
	case engine.OutcomeRejectedMalformed:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func writeError(logger *zap.Logger, w http.ResponseWriter, message string, statusCode int) {
	writeJSON(logger, w, statusCode, ErrorResponse{Error: message})
}
