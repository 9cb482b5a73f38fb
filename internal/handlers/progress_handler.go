package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sprinklerprep/internal/middleware"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/progress"
	"sprinklerprep/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProgressService interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
	Stats(ctx context.Context, userID string) (*models.UserStats, error)
	History(ctx context.Context, userID string) ([]models.GameHistory, error)
	Missed(ctx context.Context, userID string) ([]string, error)
	Mastered(ctx context.Context, userID string) ([]string, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type ProgressHandler struct {
	progress ProgressService
	logger   *zap.Logger
	now      func() time.Time
}

func NewProgressHandler(p ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{progress: p, logger: logger, now: time.Now}
}

func (h *ProgressHandler) writeError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progress.ErrUserNotFound):
		utils.Error(writer, http.StatusNotFound, "user_not_found", "No progress recorded for this user")
	case errors.Is(err, progress.ErrInvalidInput):
		utils.Error(writer, http.StatusBadRequest, "invalid_completion", err.Error())
	default:
		h.logger.Error("progress request failed", zap.Error(err))
		utils.Error(writer, http.StatusInternalServerError, "internal_error", "Progress operation failed")
	}
}

// RecordResultHandler stores a finished game played outside the server, such
// as a client-side Rapid 10 run.
func (h *ProgressHandler) RecordResultHandler(writer http.ResponseWriter, request *http.Request) {
	req := middleware.GetValidatedRequest[*models.CompletionRequest](request)
	c := req.Completion(chi.URLParam(request, "userId"), h.now())
	if err := h.progress.RecordCompletion(request.Context(), c); err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusCreated, c)
}

func (h *ProgressHandler) StatsHandler(writer http.ResponseWriter, request *http.Request) {
	stats, err := h.progress.Stats(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stats)
}

func (h *ProgressHandler) HistoryHandler(writer http.ResponseWriter, request *http.Request) {
	history, err := h.progress.History(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"items": history})
}

func (h *ProgressHandler) MissedHandler(writer http.ResponseWriter, request *http.Request) {
	ids, err := h.progress.Missed(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"questionIds": ids})
}

func (h *ProgressHandler) MasteredHandler(writer http.ResponseWriter, request *http.Request) {
	ids, err := h.progress.Mastered(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"questionIds": ids})
}

func (h *ProgressHandler) LeaderboardHandler(writer http.ResponseWriter, request *http.Request) {
	limit := progress.DefaultLeaderboardLimit
	if s := request.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 || l > progress.MaxLeaderboardLimit {
			utils.Error(writer, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer up to 100")
			return
		}
		limit = l
	}
	entries, err := h.progress.Leaderboard(request.Context(), limit)
	if err != nil {
		h.writeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"items": entries})
}
