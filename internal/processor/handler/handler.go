package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"forestclient/internal/platform/middleware"
	"forestclient/internal/submission/models"
	dErrors "forestclient/pkg/domain-errors"
	"forestclient/pkg/platform/httputil"
)

// Processor accepts submissions for asynchronous processing.
type Processor interface {
	Submit(ctx context.Context, id models.SubmissionID) error
}

// Handler exposes the processing trigger.
type Handler struct {
	processor Processor
	logger    *slog.Logger
}

// New constructs a trigger handler.
func New(processor Processor, logger *slog.Logger) *Handler {
	return &Handler{processor: processor, logger: logger}
}

// Register mounts the trigger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/processor/{submissionId}", h.HandleTrigger)
	r.Post("/api/processor", h.HandleTriggerBody)
}

// TriggerRequest is the POST body.
type TriggerRequest struct {
	SubmissionID models.SubmissionID `json:"submissionId"`
}

// AcceptedResponse acknowledges a trigger.
type AcceptedResponse struct {
	SubmissionID models.SubmissionID `json:"submissionId"`
	Status       string              `json:"status"`
}

// HandleTrigger handles GET /api/processor/{submissionId}.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseSubmissionID(chi.URLParam(r, "submissionId"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid submission id"))
		return
	}
	h.submit(w, r, id)
}

// HandleTriggerBody handles POST /api/processor.
func (h *Handler) HandleTriggerBody(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.SubmissionID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "submissionId must be positive"))
		return
	}
	h.submit(w, r, req.SubmissionID)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id models.SubmissionID) {
	ctx := r.Context()
	if err := h.processor.Submit(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "submission trigger rejected",
			"request_id", chimw.GetReqID(ctx),
			"submission_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "submission trigger accepted",
		"request_id", chimw.GetReqID(ctx),
		"submission_id", id,
		"subject", middleware.GetSubject(ctx),
	)
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{SubmissionID: id, Status: "accepted"})
}
