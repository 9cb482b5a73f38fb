package handlers

import (
	"context"
	"errors"
	"net/http"

	"sprinklerprep/internal/middleware"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/modes"
	"sprinklerprep/internal/utils"

	"github.com/go-chi/chi/v5"
)

type GameManager interface {
	Draw(ctx context.Context, mode models.GameMode, userID string, f modes.Filter) ([]models.Question, error)
	Start(ctx context.Context, mode models.GameMode, userID string, f modes.Filter) (modes.GameView, error)
	Get(id string) (modes.GameView, error)
	Answer(ctx context.Context, id string, opt int) (modes.Outcome, modes.GameView, error)
	Reveal(ctx context.Context, id string) (modes.Outcome, modes.GameView, error)
	Move(id string, forward bool) (modes.GameView, error)
	Finish(id string) error
}

type ModeHandler struct {
	games GameManager
}

func NewModeHandler(games GameManager) *ModeHandler {
	return &ModeHandler{games: games}
}

type drawResponse struct {
	Mode  models.GameMode   `json:"mode"`
	Total int               `json:"total"`
	Items []models.Question `json:"items"`
}

type playResponse struct {
	Outcome modes.Outcome  `json:"outcome"`
	Game    modes.GameView `json:"game"`
}

func writeModeError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, modes.ErrGameNotFound):
		utils.Error(writer, http.StatusNotFound, "game_not_found", err.Error())
	case errors.Is(err, modes.ErrUnsupportedMode):
		utils.Error(writer, http.StatusBadRequest, "invalid_mode", err.Error())
	case errors.Is(err, modes.ErrUserRequired):
		utils.Error(writer, http.StatusBadRequest, "user_required", err.Error())
	case errors.Is(err, modes.ErrNoQuestions):
		utils.Error(writer, http.StatusNotFound, "no_questions", err.Error())
	case errors.Is(err, modes.ErrOptionOutOfRange):
		utils.Error(writer, http.StatusBadRequest, "invalid_option", err.Error())
	case errors.Is(err, modes.ErrGameOver), errors.Is(err, modes.ErrAlreadyRevealed):
		utils.Error(writer, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, modes.ErrNotSupported):
		utils.Error(writer, http.StatusBadRequest, "not_supported", err.Error())
	default:
		utils.Error(writer, http.StatusInternalServerError, "internal_error", "Game operation failed")
	}
}

// userFor prefers the authenticated subject over a user named by the client.
func userFor(request *http.Request, claimed string) string {
	if sub, ok := middleware.UserID(request); ok {
		return sub
	}
	return claimed
}

// DrawHandler returns the questions a mode would be played with, answers
// included, for clients that run the game themselves.
func (h *ModeHandler) DrawHandler(writer http.ResponseWriter, request *http.Request) {
	filter, errResp := parseFilter(request)
	if errResp != nil {
		utils.Invalid(writer, errResp)
		return
	}
	mode := models.GameMode(chi.URLParam(request, "mode"))
	user := userFor(request, request.URL.Query().Get("user"))
	drawn, err := h.games.Draw(request.Context(), mode, user, filter)
	if err != nil {
		writeModeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, drawResponse{Mode: mode, Total: len(drawn), Items: drawn})
}

func (h *ModeHandler) StartGameHandler(writer http.ResponseWriter, request *http.Request) {
	req := middleware.GetValidatedRequest[*models.StartGameRequest](request)
	filter := modes.Filter{
		AmendmentsOnly: req.AmendmentsOnly,
		Category:       req.Category,
		Search:         req.Search,
	}
	if req.Difficulty != "" {
		filter.Difficulty = models.ParseDifficulty(req.Difficulty)
	}
	view, err := h.games.Start(request.Context(), req.Mode, userFor(request, req.UserID), filter)
	if err != nil {
		writeModeError(writer, err)
		return
	}
	writer.Header().Set("Location", "/api/v1/games/"+view.ID)
	utils.JSON(writer, http.StatusCreated, view)
}

// game loads the game named in the URL and checks the caller may touch it.
func (h *ModeHandler) game(writer http.ResponseWriter, request *http.Request) (modes.GameView, bool) {
	view, err := h.games.Get(chi.URLParam(request, "id"))
	if err != nil {
		writeModeError(writer, err)
		return modes.GameView{}, false
	}
	if sub, ok := middleware.UserID(request); ok && view.UserID != "" && view.UserID != sub {
		utils.Error(writer, http.StatusForbidden, "forbidden", "game belongs to another user")
		return modes.GameView{}, false
	}
	return view, true
}

func (h *ModeHandler) GetGameHandler(writer http.ResponseWriter, request *http.Request) {
	view, ok := h.game(writer, request)
	if !ok {
		return
	}
	utils.JSON(writer, http.StatusOK, view)
}

func (h *ModeHandler) AnswerGameHandler(writer http.ResponseWriter, request *http.Request) {
	game, ok := h.game(writer, request)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.AnswerRequest](request)
	out, view, err := h.games.Answer(request.Context(), game.ID, *req.Option)
	if err != nil {
		writeModeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, playResponse{Outcome: out, Game: view})
}

func (h *ModeHandler) RevealHandler(writer http.ResponseWriter, request *http.Request) {
	game, ok := h.game(writer, request)
	if !ok {
		return
	}
	out, view, err := h.games.Reveal(request.Context(), game.ID)
	if err != nil {
		writeModeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, playResponse{Outcome: out, Game: view})
}

func (h *ModeHandler) NextHandler(writer http.ResponseWriter, request *http.Request) {
	h.move(writer, request, true)
}

func (h *ModeHandler) PrevHandler(writer http.ResponseWriter, request *http.Request) {
	h.move(writer, request, false)
}

func (h *ModeHandler) move(writer http.ResponseWriter, request *http.Request, forward bool) {
	game, ok := h.game(writer, request)
	if !ok {
		return
	}
	view, err := h.games.Move(game.ID, forward)
	if err != nil {
		writeModeError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, view)
}

func (h *ModeHandler) FinishGameHandler(writer http.ResponseWriter, request *http.Request) {
	game, ok := h.game(writer, request)
	if !ok {
		return
	}
	if err := h.games.Finish(game.ID); err != nil {
		writeModeError(writer, err)
		return
	}
	utils.NoContent(writer)
}
