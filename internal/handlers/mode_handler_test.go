package handlers_test

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"sprinklerprep/internal/handlers"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/modes"
	"sprinklerprep/internal/routers"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProgressStore struct {
	mu          sync.Mutex
	missed      map[string][]string
	recorded    []string
	completions []models.Completion
}

func (f *fakeProgressStore) RecordCompletion(_ context.Context, c models.Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, c)
	return nil
}

func (f *fakeProgressStore) Missed(_ context.Context, userID string) ([]string, error) {
	return f.missed[userID], nil
}

func (f *fakeProgressStore) RecordMissed(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, ids...)
	return nil
}

type playBody struct {
	Outcome modes.Outcome  `json:"outcome"`
	Game    modes.GameView `json:"game"`
}

func modePool(n int) []models.Question {
	out := make([]models.Question, n)
	for i := range out {
		out[i] = models.Question{
			ID:           fmt.Sprintf("m%02d", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
			Difficulty:   models.Medium,
		}
	}
	return out
}

func modeRouter(pool []models.Question, store *fakeProgressStore, secret string) *chi.Mux {
	manager := modes.NewManager(func() []models.Question { return pool }, store, store, zap.NewNop(),
		modes.WithRand(rand.New(rand.NewSource(3))))
	r := chi.NewRouter()
	routers.ModeRoutes(r, handlers.NewModeHandler(manager), secret)
	return r
}

func send(t *testing.T, r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestDraw(t *testing.T) {
	store := &fakeProgressStore{missed: map[string][]string{"u1": {"m03", "m01"}}}
	r := modeRouter(modePool(20), store, "")

	rr := get(t, r, "/api/v1/modes/rapid/draw")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[map[string]any](t, rr)
	assert.Equal(t, float64(modes.RapidCount), body["total"])

	rr = get(t, r, "/api/v1/modes/gauntlet/draw?user=u1")
	require.Equal(t, http.StatusOK, rr.Code)
	items := decode[struct {
		Items []models.Question `json:"items"`
	}](t, rr).Items
	require.Len(t, items, 2)
	assert.Equal(t, "m01", items[0].ID)
	assert.Equal(t, "m03", items[1].ID)

	for path, code := range map[string]string{
		"/api/v1/modes/gauntlet/draw":              "user_required",
		"/api/v1/modes/chess/draw":                 "invalid_mode",
		"/api/v1/modes/rapid/draw?difficulty=nope": "invalid_difficulty",
	} {
		rr := get(t, r, path)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Equal(t, code, decode[models.ErrorResponse](t, rr).Code, path)
	}
}

func TestGames_RapidRoundRecordsCompletion(t *testing.T) {
	store := &fakeProgressStore{}
	r := modeRouter(modePool(20), store, "")

	rr := send(t, r, http.MethodPost, "/api/v1/games", `{"mode":"rapid","userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	game := decode[modes.GameView](t, rr)
	assert.Equal(t, "/api/v1/games/"+game.ID, rr.Header().Get("Location"))
	require.NotNil(t, game.Question)
	assert.Nil(t, game.Question.CorrectIndex)

	var last playBody
	for i := 0; i < modes.RapidCount; i++ {
		rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/answer", `{"option":1}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		last = decode[playBody](t, rr)
		assert.True(t, last.Outcome.Correct)
	}
	assert.True(t, last.Outcome.Finished)
	assert.Equal(t, modes.RapidCount, last.Game.Score)

	require.Len(t, store.completions, 1)
	assert.Equal(t, modes.RapidCount, store.completions[0].Score)

	rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/answer", `{"option":1}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/reveal", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "not_supported", decode[models.ErrorResponse](t, rr).Code)
}

func TestGames_Flashcards(t *testing.T) {
	store := &fakeProgressStore{}
	r := modeRouter(modePool(4), store, "")

	rr := send(t, r, http.MethodPost, "/api/v1/games", `{"mode":"flashcards","userId":"u1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	game := decode[modes.GameView](t, rr)

	rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/reveal", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	revealed := decode[playBody](t, rr)
	assert.True(t, revealed.Game.Revealed)
	require.NotNil(t, revealed.Game.Question.CorrectIndex)
	assert.Equal(t, []string{game.Question.ID}, store.recorded)

	rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[modes.GameView](t, rr).Position)

	rr = send(t, r, http.MethodPost, "/api/v1/games/"+game.ID+"/prev", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[modes.GameView](t, rr).Position)

	rr = send(t, r, http.MethodDelete, "/api/v1/games/"+game.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = get(t, r, "/api/v1/games/"+game.ID)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, store.completions)
}

func TestGames_StartValidation(t *testing.T) {
	r := modeRouter(modePool(4), &fakeProgressStore{}, "")

	for body, code := range map[string]string{
		`{}`:                  "missing_mode",
		`{"mode":"full"}`:     "invalid_mode",
		`{"mode":"gauntlet"}`: "user_required",
	} {
		rr := send(t, r, http.MethodPost, "/api/v1/games", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, code, decode[models.ErrorResponse](t, rr).Code, body)
	}

	rr := send(t, r, http.MethodPost, "/api/v1/games", `{"mode":"gauntlet","userId":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "no_questions", decode[models.ErrorResponse](t, rr).Code)
}

func TestGames_TokenSubjectOwnsGame(t *testing.T) {
	const secret = "s3cret"
	r := modeRouter(modePool(12), &fakeProgressStore{}, secret)
	bearer := func(sub string) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte(secret))
		require.NoError(t, err)
		return "Bearer " + signed
	}

	// the token subject wins over the claimed userId
	rr := send(t, r, http.MethodPost, "/api/v1/games", `{"mode":"rapid","userId":"someone-else"}`, "Authorization", bearer("u1"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	game := decode[modes.GameView](t, rr)
	assert.Equal(t, "u1", game.UserID)

	rr = send(t, r, http.MethodGet, "/api/v1/games/"+game.ID, "", "Authorization", bearer("u2"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = send(t, r, http.MethodGet, "/api/v1/games/"+game.ID, "", "Authorization", bearer("u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, r, http.MethodGet, "/api/v1/games/"+game.ID, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
