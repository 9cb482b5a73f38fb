package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sprinklerprep/internal/exam"
	"sprinklerprep/internal/middleware"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ExamRegistry interface {
	Start(ctx context.Context, owner string) (*exam.Session, error)
	Retry(ctx context.Context, owner string) (*exam.Session, error)
	Get(owner string) (*exam.Session, bool)
}

type ExamHandler struct {
	registry ExamRegistry
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewExamHandler(registry ExamRegistry, logger *zap.Logger) *ExamHandler {
	return &ExamHandler{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// payload for 409 confirmation_required
type confirmationRequired struct {
	models.ErrorResponse
	Unanswered int `json:"unanswered"`
}

func (h *ExamHandler) session(writer http.ResponseWriter, request *http.Request) (*exam.Session, bool) {
	s, ok := h.registry.Get(chi.URLParam(request, "owner"))
	if !ok {
		utils.Error(writer, http.StatusNotFound, "exam_not_found", "No exam has been started for this owner")
		return nil, false
	}
	return s, true
}

func position(writer http.ResponseWriter, request *http.Request) (int, bool) {
	pos, err := strconv.Atoi(chi.URLParam(request, "pos"))
	if err != nil {
		utils.Error(writer, http.StatusBadRequest, "invalid_position", "position must be an integer")
		return 0, false
	}
	return pos, true
}

func writeExamError(writer http.ResponseWriter, err error) {
	var confirm *exam.ConfirmationRequiredError
	switch {
	case errors.As(err, &confirm):
		utils.JSON(writer, http.StatusConflict, confirmationRequired{
			ErrorResponse: models.ErrorResponse{
				Code:    "confirmation_required",
				Message: confirm.Error(),
			},
			Unanswered: confirm.Unanswered,
		})
	case errors.Is(err, exam.ErrNotStarted):
		utils.Error(writer, http.StatusConflict, "exam_not_started", err.Error())
	case errors.Is(err, exam.ErrSubmitted):
		utils.Error(writer, http.StatusConflict, "exam_submitted", err.Error())
	case errors.Is(err, exam.ErrPositionOutOfRange):
		utils.Error(writer, http.StatusBadRequest, "invalid_position", err.Error())
	case errors.Is(err, exam.ErrOptionOutOfRange):
		utils.Error(writer, http.StatusBadRequest, "invalid_option", err.Error())
	case errors.Is(err, exam.ErrEmptyPool):
		utils.Error(writer, http.StatusServiceUnavailable, "bank_not_loaded", err.Error())
	default:
		utils.Error(writer, http.StatusInternalServerError, "internal_error", "Exam operation failed")
	}
}

// StartHandler resumes the owner's persisted exam or begins a new one.
func (h *ExamHandler) StartHandler(writer http.ResponseWriter, request *http.Request) {
	s, err := h.registry.Start(request.Context(), chi.URLParam(request, "owner"))
	if err != nil {
		writeExamError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, s.View())
}

func (h *ExamHandler) RetryHandler(writer http.ResponseWriter, request *http.Request) {
	s, err := h.registry.Retry(request.Context(), chi.URLParam(request, "owner"))
	if err != nil {
		writeExamError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, s.View())
}

func (h *ExamHandler) GetHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	utils.JSON(writer, http.StatusOK, s.View())
}

func (h *ExamHandler) AnswerHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	pos, ok := position(writer, request)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.AnswerRequest](request)
	if err := s.Answer(request.Context(), pos, *req.Option); err != nil {
		writeExamError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, s.View())
}

func (h *ExamHandler) ReviewHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	pos, ok := position(writer, request)
	if !ok {
		return
	}
	marked, err := s.ToggleReview(request.Context(), pos)
	if err != nil {
		writeExamError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"position": pos, "marked": marked})
}

// VisibilityHandler records a proctor strike when the client reports the
// exam went out of view. Becoming visible again changes nothing.
func (h *ExamHandler) VisibilityHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.VisibilityRequest](request)
	recorded := false
	strikes := s.View().ProctorStrikes
	if req.Hidden {
		strikes, recorded = s.VisibilityLost(request.Context())
	}
	utils.JSON(writer, http.StatusOK, map[string]any{"proctorStrikes": strikes, "recorded": recorded})
}

func (h *ExamHandler) SubmitHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.SubmitRequest](request)
	res, err := s.Submit(request.Context(), false, func(int) bool { return req.Confirm })
	if err != nil {
		writeExamError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, res)
}

// WebSocketHandler streams countdown ticks, proctor strikes and the final
// submission to the client. The stream closes after the submitted frame.
func (h *ExamHandler) WebSocketHandler(writer http.ResponseWriter, request *http.Request) {
	s, ok := h.session(writer, request)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	// server read/write timeouts stay on the hijacked connection
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	events := make(chan exam.Event, 16)
	unsubscribe := s.Subscribe(func(ev exam.Event) {
		select {
		case events <- ev:
		default:
			// slow reader: drop ticks, never block the countdown
		}
	})
	defer unsubscribe()

	view := s.View()
	if view.State == exam.StateSubmitted {
		_ = conn.WriteJSON(exam.Event{Type: exam.EventSubmitted, Result: view.Result})
		return
	}
	if err := conn.WriteJSON(exam.Event{Type: exam.EventTick, RemainingSeconds: view.RemainingSeconds, ProctorStrikes: view.ProctorStrikes}); err != nil {
		return
	}

	// the client never sends anything meaningful; reading detects a close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-request.Context().Done():
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("exam stream write failed", zap.String("owner", s.Owner()), zap.Error(err))
				return
			}
			if ev.Type == exam.EventSubmitted {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"))
				return
			}
		}
	}
}
