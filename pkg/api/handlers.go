package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/processor"
	"github.com/goran-ethernal/BountyIndexor/internal/proof"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	"github.com/samber/lo"
)

const maxRequestBody = 64 << 10

// Store is the read side of the aggregation store.
type Store interface {
	GetWorker(ctx context.Context, address string) (*bounty.WorkerRecord, error)
	GetBounty(ctx context.Context, id string) (*bounty.BountyRecord, error)
	ListPayouts(ctx context.Context, address string, limit int) ([]*bounty.PayoutRecord, error)
	ListTopWorkers(ctx context.Context, limit int) ([]*bounty.WorkerRecord, error)
	ListDailyStats(ctx context.Context, from, to string) ([]*bounty.DailyStats, error)
	Stats(ctx context.Context) (*bounty.ContractStats, error)
}

// StatusProvider reports the state of the processing pipeline.
type StatusProvider interface {
	Status() processor.Status
}

// ProofSubmitter verifies and stores claim proofs.
type ProofSubmitter interface {
	Submit(ctx context.Context, sub proof.Submission) (*bounty.ProofRecord, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	store  Store
	status StatusProvider
	proofs ProofSubmitter
	log    *logger.Logger
}

// NewHandler creates a new API handler. proofs may be nil when no verifier is configured.
func NewHandler(st Store, status StatusProvider, proofs ProofSubmitter, log *logger.Logger) *Handler {
	return &Handler{
		store:  st,
		status: status,
		proofs: proofs,
		log:    log,
	}
}

// Health reports whether the processor is running.
// @Summary Health check
// @Description Returns 200 while the processor is healthy and 503 once it has failed
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	s := h.status.Status()

	resp := HealthResponse{Status: "ok", State: string(s.State), Timestamp: time.Now().UTC()}
	code := http.StatusOK
	if s.State == processor.StateFailed {
		resp.Status = "failed"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, resp)
}

// GetStatus returns the processing pipeline status.
// @Summary Processor status
// @Description Current processor state, last committed height, chain head and lag
// @Tags Status
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newStatusResponse(h.status.Status()))
}

// GetTopWorkers returns the workers with the highest reputation.
// @Summary Top workers
// @Description Workers ordered by reputation score, earliest first bounty wins ties
// @Tags Workers
// @Produce json
// @Param limit query int false "Maximum number of workers" default(10)
// @Success 200 {array} WorkerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /workers/top [get]
func (h *Handler) GetTopWorkers(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	workers, err := h.store.ListTopWorkers(r.Context(), limit)
	if err != nil {
		h.storeError(w, err, "failed to list top workers")
		return
	}

	respondJSON(w, http.StatusOK, lo.Map(workers, func(wr *bounty.WorkerRecord, _ int) WorkerResponse {
		return newWorkerResponse(wr)
	}))
}

// GetWorker returns a worker's aggregates.
// @Summary Get worker
// @Tags Workers
// @Produce json
// @Param address path string true "Worker address"
// @Success 200 {object} WorkerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /workers/{address} [get]
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	worker, err := h.store.GetWorker(r.Context(), address)
	if err != nil {
		h.storeError(w, err, fmt.Sprintf("worker %s not found", address))
		return
	}

	respondJSON(w, http.StatusOK, newWorkerResponse(worker))
}

// GetWorkerPayouts returns a worker's payouts, most recent first.
// @Summary Worker payouts
// @Tags Workers
// @Produce json
// @Param address path string true "Worker address"
// @Param limit query int false "Maximum number of payouts" default(10)
// @Success 200 {array} PayoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /workers/{address}/payouts [get]
func (h *Handler) GetWorkerPayouts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payouts, err := h.store.ListPayouts(r.Context(), r.PathValue("address"), limit)
	if err != nil {
		h.storeError(w, err, "failed to list payouts")
		return
	}

	respondJSON(w, http.StatusOK, lo.Map(payouts, func(p *bounty.PayoutRecord, _ int) PayoutResponse {
		return newPayoutResponse(p)
	}))
}

// GetBounty returns a bounty.
// @Summary Get bounty
// @Tags Bounties
// @Produce json
// @Param id path string true "Bounty id (decimal)"
// @Success 200 {object} BountyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bounties/{id} [get]
func (h *Handler) GetBounty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.store.GetBounty(r.Context(), id)
	if err != nil {
		h.storeError(w, err, fmt.Sprintf("bounty %s not found", id))
		return
	}

	respondJSON(w, http.StatusOK, newBountyResponse(b))
}

// GetStats returns platform-wide totals.
// @Summary Platform statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.storeError(w, err, "failed to get stats")
		return
	}

	respondJSON(w, http.StatusOK, newStatsResponse(stats))
}

// GetDailyStats returns per-day payment activity.
// @Summary Daily statistics
// @Tags Stats
// @Produce json
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {array} DailyStatsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/daily [get]
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" && to != "" && from > to {
		respondError(w, http.StatusBadRequest, "from cannot be after to")
		return
	}

	days, err := h.store.ListDailyStats(r.Context(), from, to)
	if err != nil {
		h.storeError(w, err, "failed to list daily stats")
		return
	}

	respondJSON(w, http.StatusOK, lo.Map(days, func(d *bounty.DailyStats, _ int) DailyStatsResponse {
		return newDailyStatsResponse(d)
	}))
}

// SubmitProof verifies a worker's claim and stores the proof.
// @Summary Submit proof
// @Description Sends the claim to the proof verifier and stores the outcome. Aggregates are not changed.
// @Tags Bounties
// @Accept json
// @Produce json
// @Param id path string true "Bounty id (decimal)"
// @Param request body SubmitProofRequest true "Claim"
// @Success 201 {object} ProofResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /bounties/{id}/proofs [post]
func (h *Handler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	if h.proofs == nil {
		respondError(w, http.StatusServiceUnavailable, "proof verification is not configured")
		return
	}

	var req SubmitProofRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	rec, err := h.proofs.Submit(r.Context(), proof.Submission{
		BountyID: r.PathValue("id"),
		Worker:   req.Worker,
		ClaimURL: req.ClaimURL,
		Headers:  req.Headers,
	})
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Errorf("proof submission failed: %v", err)
		respondError(w, http.StatusBadGateway, "proof verification failed")
		return
	}

	respondJSON(w, http.StatusCreated, newProofResponse(rec))
}

// storeError maps store errors to responses. notFound is the message used for missing records.
func (h *Handler) storeError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Errorf("store query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > store.MaxListLimit {
		return 0, fmt.Errorf("invalid limit: must be between 1 and %d", store.MaxListLimit)
	}
	return limit, nil
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// encode first so a failure can still change the status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
