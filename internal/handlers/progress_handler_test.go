package handlers_test

import (
	"net/http"
	"testing"

	"sprinklerprep/internal/handlers"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/progress"
	"sprinklerprep/internal/routers"
	"sprinklerprep/internal/testhelpers"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func progressRouter(t *testing.T, secret string) *chi.Mux {
	svc := progress.NewService(testhelpers.SetupTestDB(t), zap.NewNop())
	r := chi.NewRouter()
	routers.ProgressRoutes(r, handlers.NewProgressHandler(svc, zap.NewNop()), secret)
	return r
}

func TestProgress_RecordAndQuery(t *testing.T) {
	r := progressRouter(t, "")

	rr := send(t, r, http.MethodPost, "/api/v1/progress/u1/results",
		`{"mode":"rapid","displayName":"Pat","score":1,"total":2,"missedQuestionIds":["q2"],"allQuestionIds":["q1","q2"],"categoryStats":{"NFPA 13":{"correct":1,"total":2}}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "u1", decode[models.Completion](t, rr).UserID)

	rr = get(t, r, "/api/v1/progress/u1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stats := decode[models.UserStats](t, rr)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.TotalScore)
	assert.Equal(t, 1, stats.Streak)
	assert.Equal(t, models.ModeStat{Played: 1, TotalScore: 1, TotalQuestions: 2}, stats.Modes[models.ModeRapid10])
	assert.Equal(t, models.CategoryStat{Correct: 1, Total: 2}, stats.Categories["NFPA 13"])

	rr = get(t, r, "/api/v1/progress/u1/history")
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[struct {
		Items []models.GameHistory `json:"items"`
	}](t, rr).Items
	require.Len(t, history, 1)
	assert.Equal(t, models.ModeRapid10, history[0].Mode)

	rr = get(t, r, "/api/v1/progress/u1/missed")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"q2"}, decode[map[string][]string](t, rr)["questionIds"])

	rr = get(t, r, "/api/v1/leaderboard")
	require.Equal(t, http.StatusOK, rr.Code)
	board := decode[struct {
		Items []models.LeaderboardEntry `json:"items"`
	}](t, rr).Items
	require.Len(t, board, 1)
	assert.Equal(t, "Pat", board[0].DisplayName)
}

func TestProgress_Errors(t *testing.T) {
	r := progressRouter(t, "")

	rr := get(t, r, "/api/v1/progress/ghost")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "user_not_found", decode[models.ErrorResponse](t, rr).Code)

	rr = send(t, r, http.MethodPost, "/api/v1/progress/u1/results", `{"mode":"chess","score":0,"total":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_mode", decode[models.ErrorResponse](t, rr).Code)

	rr = send(t, r, http.MethodPost, "/api/v1/progress/u1/results", `{"mode":"rapid","score":5,"total":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	for _, limit := range []string{"0", "101", "ten"} {
		rr = get(t, r, "/api/v1/leaderboard?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rr.Code, limit)
	}
}

func TestProgress_OwnerMustMatchToken(t *testing.T) {
	const secret = "s3cret"
	r := progressRouter(t, secret)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	rr := send(t, r, http.MethodGet, "/api/v1/progress/u2/missed", "", "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = send(t, r, http.MethodGet, "/api/v1/progress/u1/missed", "", "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, rr.Code)

	// the leaderboard is public
	rr = get(t, r, "/api/v1/leaderboard")
	assert.Equal(t, http.StatusOK, rr.Code)
}
