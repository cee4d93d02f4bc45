package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

type enqueueRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Enqueue")
	defer span.End()

	var req enqueueRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	entry, err := h.queueService.Enqueue(ctx, strings.TrimSpace(req.PlayerID))
	if err != nil {
		h.logger.WarnContext(ctx, "enqueue failed", "player_id", req.PlayerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, queueEntryDTO{
		PlayerID:   entry.PlayerID,
		Rating:     entry.Rating,
		EnqueuedAt: entry.EnqueuedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LeaveQueue")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	if playerID == "" {
		writeError(ctx, w, fmt.Errorf("%w: player id is required", usecase.ErrInvalidInput))
		return
	}

	removed, err := h.queueService.Leave(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "leave queue failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetQueueStatus")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	if playerID == "" {
		writeError(ctx, w, fmt.Errorf("%w: player id is required", usecase.ErrInvalidInput))
		return
	}

	status, err := h.queueService.GetStatus(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "get queue status failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, status)
}
