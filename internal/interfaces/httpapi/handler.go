package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/duelhub/internal/domain/match"
	"github.com/riskibarqy/duelhub/internal/infrastructure/push"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

type Handler struct {
	queueService *usecase.QueueService
	matchService *usecase.MatchService
	hub          *push.Hub
	logger       *slog.Logger
	validator    *validator.Validate
}

func NewHandler(
	queueService *usecase.QueueService,
	matchService *usecase.MatchService,
	hub *push.Hub,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		queueService: queueService,
		matchService: matchService,
		hub:          hub,
		logger:       logger,
		validator:    validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type matchDTO struct {
	ID              string `json:"id"`
	Player1ID       string `json:"player1Id"`
	Player2ID       string `json:"player2Id"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	AcceptDeadline  string `json:"acceptDeadline"`
	Player1Accepted bool   `json:"player1Accepted"`
	Player2Accepted bool   `json:"player2Accepted"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	WinnerID        string `json:"winnerId,omitempty"`
}

type queueEntryDTO struct {
	PlayerID   string `json:"playerId"`
	Rating     int    `json:"rating"`
	EnqueuedAt string `json:"enqueuedAt"`
}

func matchToDTO(ctx context.Context, m match.Match) matchDTO {
	ctx, span := startSpan(ctx, "httpapi.matchToDTO")
	defer span.End()

	dto := matchDTO{
		ID:              m.ID,
		Player1ID:       m.Player1ID,
		Player2ID:       m.Player2ID,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339),
		AcceptDeadline:  m.AcceptDeadline.UTC().Format(time.RFC3339),
		Player1Accepted: m.Player1Accepted,
		Player2Accepted: m.Player2Accepted,
		WinnerID:        m.WinnerID,
	}
	if m.StartTime != nil {
		dto.StartTime = m.StartTime.UTC().Format(time.RFC3339)
	}
	if m.EndTime != nil {
		dto.EndTime = m.EndTime.UTC().Format(time.RFC3339)
	}

	return dto
}
