package routers

import (
	"net/http"
	"time"

	"sprinklerprep/internal/handlers"
	mw "sprinklerprep/internal/middleware"
	"sprinklerprep/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestTimeout bounds every REST request. The exam websocket is exempt.
const RequestTimeout = 60 * time.Second

func HealthRoutes(r *chi.Mux, healthHandler *handlers.HealthHandler, metrics http.Handler) {
	r.Get("/healthz", healthHandler.HealthzHandler)
	r.Get("/readyz", healthHandler.ReadyzHandler)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
}

func QuestionRoutes(r *chi.Mux, questionHandler *handlers.QuestionHandler) {
	r.Route("/api/v1/questions", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Get("/", questionHandler.GetQuestionsHandler)
		r.Get("/categories", questionHandler.GetCategoriesHandler)
		r.Get("/diagnostics", questionHandler.GetDiagnosticsHandler)
		r.Get("/{id}", questionHandler.GetQuestionByIDHandler)
	})
}

func ExamRoutes(r *chi.Mux, examHandler *handlers.ExamHandler, jwtSecret string) {
	r.Route("/api/v1/exam/{owner}", func(r chi.Router) {
		r.Use(mw.Authenticate(jwtSecret), mw.RequireOwner("owner"))

		r.Get("/ws", examHandler.WebSocketHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(RequestTimeout))
			r.Get("/", examHandler.GetHandler)
			r.Post("/start", examHandler.StartHandler)
			r.Post("/retry", examHandler.RetryHandler)
			r.With(mw.ValidateRequest[*models.AnswerRequest]()).Put("/answers/{pos}", examHandler.AnswerHandler)
			r.Post("/review/{pos}", examHandler.ReviewHandler)
			r.With(mw.ValidateRequest[*models.VisibilityRequest]()).Post("/visibility", examHandler.VisibilityHandler)
			r.With(mw.ValidateRequest[*models.SubmitRequest]()).Post("/submit", examHandler.SubmitHandler)
		})
	})
}

func ModeRoutes(r *chi.Mux, modeHandler *handlers.ModeHandler, jwtSecret string) {
	r.With(middleware.Timeout(RequestTimeout), mw.Authenticate(jwtSecret)).
		Get("/api/v1/modes/{mode}/draw", modeHandler.DrawHandler)

	r.Route("/api/v1/games", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout), mw.Authenticate(jwtSecret))
		r.With(mw.ValidateRequest[*models.StartGameRequest]()).Post("/", modeHandler.StartGameHandler)
		r.Get("/{id}", modeHandler.GetGameHandler)
		r.With(mw.ValidateRequest[*models.AnswerRequest]()).Post("/{id}/answer", modeHandler.AnswerGameHandler)
		r.Post("/{id}/reveal", modeHandler.RevealHandler)
		r.Post("/{id}/next", modeHandler.NextHandler)
		r.Post("/{id}/prev", modeHandler.PrevHandler)
		r.Delete("/{id}", modeHandler.FinishGameHandler)
	})
}

func ProgressRoutes(r *chi.Mux, progressHandler *handlers.ProgressHandler, jwtSecret string) {
	r.Route("/api/v1/progress/{userId}", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout), mw.Authenticate(jwtSecret), mw.RequireOwner("userId"))
		r.Get("/", progressHandler.StatsHandler)
		r.Get("/history", progressHandler.HistoryHandler)
		r.Get("/missed", progressHandler.MissedHandler)
		r.Get("/mastered", progressHandler.MasteredHandler)
		r.With(mw.ValidateRequest[*models.CompletionRequest]()).Post("/results", progressHandler.RecordResultHandler)
	})
	r.With(middleware.Timeout(RequestTimeout)).Get("/api/v1/leaderboard", progressHandler.LeaderboardHandler)
}
