// Package handler exposes the notification admission flow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"platewatch/internal/transport/http/shared"
	"platewatch/internal/violation/models"
	dErrors "platewatch/pkg/domain-errors"
)

// Service is the admission operation the handler delegates to.
type Service interface {
	RegisterViolation(ctx context.Context, plate, phone, email string) (*models.NotificationAttempt, error)
}

// Handler serves the notification endpoints.
type Handler struct {
	logger     *slog.Logger
	service    Service
	dailyLimit int
}

func New(service Service, dailyLimit int, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, dailyLimit: dailyLimit}
}

// Register mounts the notification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/addNumberPlate", h.handleAddNumberPlate)
}

// Field names mirror the upstream media-analysis service's payload.
type addNumberPlateRequest struct {
	NumberPlate string `json:"numberplate"`
	PhoneNumber string `json:"phonenumber"`
	Email       string `json:"email"`
}

type addNumberPlateResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
	Sid    string `json:"sid,omitempty"`
}

func (h *Handler) handleAddNumberPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)

	var req addNumberPlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid addNumberPlate body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	attempt, err := h.service.RegisterViolation(ctx, req.NumberPlate, req.PhoneNumber, req.Email)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "registerViolation failed",
			"request_id", requestID,
			"plate", req.NumberPlate,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, h.toResponse(attempt))
}

func (h *Handler) toResponse(attempt *models.NotificationAttempt) addNumberPlateResponse {
	switch attempt.Outcome {
	case models.OutcomeQuotaExceeded:
		return addNumberPlateResponse{
			Status: "limit_reached",
			Msg:    fmt.Sprintf("Max %d SMS sent today", h.dailyLimit),
		}
	case models.OutcomeDuplicateRejected:
		return addNumberPlateResponse{
			Status: "duplicate",
			Msg:    "Number plate already registered",
		}
	default:
		return addNumberPlateResponse{
			Status: "success",
			Msg:    "Notification sent",
			Sid:    attempt.ProviderMessageID,
		}
	}
}
