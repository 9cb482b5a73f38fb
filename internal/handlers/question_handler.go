package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"sprinklerprep/internal/models"
	"sprinklerprep/internal/modes"
	"sprinklerprep/internal/repositories"
	"sprinklerprep/internal/utils"

	"github.com/go-chi/chi/v5"
)

type QuestionRepo interface {
	GetAll(f modes.Filter) ([]models.Question, error)
	GetAllWithPagination(page, limit int, f modes.Filter) ([]models.Question, int, error)
	GetByID(id string) (*models.Question, error)
	Categories() []string
	Diagnostics() []models.Diagnostic
}

type QuestionHandler struct {
	repo QuestionRepo
}

func NewQuestionHandler(r QuestionRepo) *QuestionHandler {
	return &QuestionHandler{repo: r}
}

// parseFilter reads the bank filters shared by the question list and the mode
// endpoints.
func parseFilter(request *http.Request) (modes.Filter, *models.ErrorResponse) {
	q := request.URL.Query()
	f := modes.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if d := q.Get("difficulty"); d != "" {
		switch strings.ToLower(d) {
		case "easy", "medium", "hard":
			f.Difficulty = models.ParseDifficulty(d)
		default:
			return f, &models.ErrorResponse{Code: "invalid_difficulty", Message: "difficulty must be Easy, Medium or Hard"}
		}
	}
	if v := q.Get("mnOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &models.ErrorResponse{Code: "invalid_mn_only", Message: "mnOnly must be a boolean"}
		}
		f.AmendmentsOnly = b
	}
	return f, nil
}

func (handler *QuestionHandler) GetQuestionsHandler(writer http.ResponseWriter, request *http.Request) {
	filter, errResp := parseFilter(request)
	if errResp != nil {
		utils.Invalid(writer, errResp)
		return
	}

	pageStr := request.URL.Query().Get("page")
	limitStr := request.URL.Query().Get("limit")

	// without pagination parameters the whole filtered bank is one page
	page, limit := 1, 0
	if pageStr != "" || limitStr != "" {
		limit = 10
		if pageStr != "" {
			if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
				page = p
			} else {
				utils.Error(writer, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
				return
			}
		}
		if limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			} else {
				utils.Error(writer, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer between 1 and 100")
				return
			}
		}
	}

	var (
		questions []models.Question
		total     int
		err       error
	)
	if limit == 0 {
		questions, err = handler.repo.GetAll(filter)
		total = len(questions)
		limit = total
	} else {
		questions, total, err = handler.repo.GetAllWithPagination(page, limit, filter)
	}
	if err != nil {
		writeRepoError(writer, err)
		return
	}

	totalPages, hasNext, hasPrev := models.CalculatePaginationMeta(page, limit, total)
	utils.JSON(writer, http.StatusOK, models.QuestionsResponse{
		Total:      total,
		Items:      questions,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    hasNext,
		HasPrev:    hasPrev,
	})
}

func (handler *QuestionHandler) GetQuestionByIDHandler(writer http.ResponseWriter, request *http.Request) {
	question, err := handler.repo.GetByID(chi.URLParam(request, "id"))
	if err != nil {
		writeRepoError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, question)
}

func (handler *QuestionHandler) GetCategoriesHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string][]string{"categories": handler.repo.Categories()})
}

func (handler *QuestionHandler) GetDiagnosticsHandler(writer http.ResponseWriter, request *http.Request) {
	diags := handler.repo.Diagnostics()
	if kind := request.URL.Query().Get("kind"); kind != "" {
		filtered := make([]models.Diagnostic, 0, len(diags))
		for _, d := range diags {
			if string(d.Kind) == kind {
				filtered = append(filtered, d)
			}
		}
		diags = filtered
	}
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	utils.JSON(writer, http.StatusOK, models.DiagnosticsResponse{Total: len(diags), Items: diags})
}

func writeRepoError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repositories.ErrQuestionNotFound):
		utils.Error(writer, http.StatusNotFound, "question_not_found", "Question not found")
	case errors.Is(err, repositories.ErrBankNotLoaded):
		utils.Error(writer, http.StatusServiceUnavailable, "bank_not_loaded", "Question bank is not loaded yet")
	default:
		utils.Error(writer, http.StatusInternalServerError, "internal_error", "Failed to fetch questions")
	}
}
