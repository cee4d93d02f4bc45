package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

type matchDecisionRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

func (h *Handler) decodeDecision(w http.ResponseWriter, r *http.Request) (matchID, playerID string, ok bool) {
	ctx := r.Context()

	matchID = strings.TrimSpace(r.PathValue("matchID"))
	if matchID == "" {
		writeError(ctx, w, fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput))
		return "", "", false
	}

	var req matchDecisionRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return "", "", false
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return "", "", false
	}

	return matchID, strings.TrimSpace(req.PlayerID), true
}

func (h *Handler) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AcceptMatch")
	defer span.End()

	matchID, playerID, ok := h.decodeDecision(w, r.WithContext(ctx))
	if !ok {
		return
	}

	m, err := h.matchService.Accept(ctx, matchID, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "accept match failed", "match_id", matchID, "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, m))
}

func (h *Handler) DeclineMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeclineMatch")
	defer span.End()

	matchID, playerID, ok := h.decodeDecision(w, r.WithContext(ctx))
	if !ok {
		return
	}

	m, err := h.matchService.Decline(ctx, matchID, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "decline match failed", "match_id", matchID, "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, m))
}

func (h *Handler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	if matchID == "" {
		writeError(ctx, w, fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput))
		return
	}

	m, err := h.matchService.Cancel(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, m))
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	if matchID == "" {
		writeError(ctx, w, fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput))
		return
	}

	m, err := h.matchService.GetMatch(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, m))
}

func (h *Handler) ListActiveMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListActiveMatches")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	if playerID == "" {
		writeError(ctx, w, fmt.Errorf("%w: player id is required", usecase.ErrInvalidInput))
		return
	}

	matches, err := h.matchService.GetActiveMatches(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "list active matches failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchToDTO(ctx, m))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListMatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatchHistory")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	if playerID == "" {
		writeError(ctx, w, fmt.Errorf("%w: player id is required", usecase.ErrInvalidInput))
		return
	}

	limit, err := parseQueryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	offset, err := parseQueryInt(r, "offset", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.matchService.GetMatchHistory(ctx, playerID, limit, offset)
	if err != nil {
		h.logger.WarnContext(ctx, "list match history failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchToDTO(ctx, m))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func parseQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", usecase.ErrInvalidInput, name)
	}

	return value, nil
}
