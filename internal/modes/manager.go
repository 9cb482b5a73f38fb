package modes

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sprinklerprep/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrUnsupportedMode = errors.New("mode is not played through the practice manager")
	ErrUserRequired    = errors.New("user is required for this mode")
)

// CompletionRecorder receives finished games.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
}

// MissedStore is the user's persistent missed-question set.
type MissedStore interface {
	Missed(ctx context.Context, userID string) ([]string, error)
	RecordMissed(ctx context.Context, userID string, questionIDs []string) error
}

type GameView struct {
	ID       string               `json:"id"`
	UserID   string               `json:"userId,omitempty"`
	Mode     models.GameMode      `json:"mode"`
	Position int                  `json:"position"`
	Total    int                  `json:"total,omitempty"`
	Score    int                  `json:"score"`
	Finished bool                 `json:"finished"`
	Revealed bool                 `json:"revealed,omitempty"`
	Question *models.QuestionCard `json:"question,omitempty"`
}

type entry struct {
	id        string
	userID    string
	game      Game
	updatedAt time.Time
}

func (e *entry) view() GameView {
	pos, total, score := e.game.Progress()
	v := GameView{
		ID:       e.id,
		UserID:   e.userID,
		Mode:     e.game.Mode(),
		Position: pos,
		Total:    total,
		Score:    score,
		Finished: e.game.Finished(),
	}
	if q := e.game.Current(); q != nil {
		reveal := false
		if d, ok := e.game.(*Deck); ok {
			reveal = d.Revealed()
			v.Revealed = reveal
		}
		card := models.NewQuestionCard(q, reveal)
		v.Question = &card
	}
	return v
}

// Manager keeps the in-flight practice games of every player.
type Manager struct {
	mu    sync.Mutex
	games map[string]*entry
	rng   *rand.Rand

	pool     func() []models.Question
	recorder CompletionRecorder
	missed   MissedStore
	logger   *zap.Logger
	now      func() time.Time
}

type ManagerOption func(*Manager)

func WithRand(r *rand.Rand) ManagerOption {
	return func(m *Manager) { m.rng = r }
}

func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(pool func() []models.Question, recorder CompletionRecorder, missed MissedStore, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		games:    make(map[string]*entry),
		pool:     pool,
		recorder: recorder,
		missed:   missed,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

// Draw returns the questions a mode would be played with, without starting a
// game. Sudden death and flashcards draw the whole shuffled pool.
func (m *Manager) Draw(ctx context.Context, mode models.GameMode, userID string, f Filter) ([]models.Question, error) {
	pool := Apply(m.pool(), f)

	var missed []string
	if mode == models.ModeGauntlet {
		var err error
		if missed, err = m.missedFor(ctx, userID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch mode {
	case models.ModeRapid10:
		return DrawRapid(pool, m.rng), nil
	case models.ModeGauntlet:
		return DrawGauntlet(pool, missed), nil
	case models.ModeSuddenDeath, models.ModeFlashcards:
		return Shuffled(pool, m.rng), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

func (m *Manager) missedFor(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return m.missed.Missed(ctx, userID)
}

// Start begins a new game of mode for userID over the filtered bank.
func (m *Manager) Start(ctx context.Context, mode models.GameMode, userID string, f Filter) (GameView, error) {
	pool := Apply(m.pool(), f)

	var missed []string
	if mode == models.ModeGauntlet {
		var err error
		if missed, err = m.missedFor(ctx, userID); err != nil {
			return GameView{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		game Game
		err  error
	)
	switch mode {
	case models.ModeRapid10:
		game, err = NewRapidRound(pool, m.rng)
	case models.ModeGauntlet:
		game, err = NewGauntletRound(pool, missed)
	case models.ModeSuddenDeath:
		game, err = NewSuddenDeath(pool, m.rng)
	case models.ModeFlashcards:
		game, err = NewDeck(pool, m.rng)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	if err != nil {
		return GameView{}, err
	}

	e := &entry{id: uuid.NewString(), userID: userID, game: game, updatedAt: m.now()}
	m.games[e.id] = e
	m.logger.Info("started practice game",
		zap.String("game_id", e.id),
		zap.String("mode", string(mode)),
		zap.String("user_id", userID))
	return e.view(), nil
}

func (m *Manager) Get(id string) (GameView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	if !ok {
		return GameView{}, ErrGameNotFound
	}
	return e.view(), nil
}

// Answer grades opt against the current question of game id. A finished game
// is reported to the recorder exactly once.
func (m *Manager) Answer(ctx context.Context, id string, opt int) (Outcome, GameView, error) {
	return m.play(ctx, id, func(g Game) (Outcome, error) { return g.Answer(opt) })
}

// Reveal flips the current flashcard without a guess.
func (m *Manager) Reveal(ctx context.Context, id string) (Outcome, GameView, error) {
	return m.play(ctx, id, func(g Game) (Outcome, error) {
		d, ok := g.(*Deck)
		if !ok {
			return Outcome{}, ErrNotSupported
		}
		return d.Reveal()
	})
}

func (m *Manager) play(ctx context.Context, id string, step func(Game) (Outcome, error)) (Outcome, GameView, error) {
	m.mu.Lock()
	e, ok := m.games[id]
	if !ok {
		m.mu.Unlock()
		return Outcome{}, GameView{}, ErrGameNotFound
	}
	out, err := step(e.game)
	if err != nil {
		view := e.view()
		m.mu.Unlock()
		return Outcome{}, view, err
	}
	e.updatedAt = m.now()
	view := e.view()
	var completion *models.Completion
	if out.Finished {
		c := e.game.Completion(e.userID)
		c.FinishedAt = m.now()
		completion = &c
	}
	m.mu.Unlock()

	if out.Missed != "" && e.userID != "" {
		if err := m.missed.RecordMissed(ctx, e.userID, []string{out.Missed}); err != nil {
			m.logger.Error("failed to record missed question", zap.String("game_id", id), zap.Error(err))
		}
	}
	if completion != nil && e.userID != "" {
		if err := m.recorder.RecordCompletion(ctx, *completion); err != nil {
			m.logger.Error("failed to record practice completion", zap.String("game_id", id), zap.Error(err))
		}
	}
	return out, view, nil
}

// Move steps a flashcard deck forward or back, wrapping around.
func (m *Manager) Move(id string, forward bool) (GameView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	if !ok {
		return GameView{}, ErrGameNotFound
	}
	d, ok := e.game.(*Deck)
	if !ok {
		return e.view(), ErrNotSupported
	}
	if forward {
		d.Next()
	} else {
		d.Prev()
	}
	e.updatedAt = m.now()
	return e.view(), nil
}

// Finish drops game id. Unfinished games are abandoned without a record.
func (m *Manager) Finish(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return ErrGameNotFound
	}
	delete(m.games, id)
	return nil
}

// Sweep drops games idle for longer than maxIdle and returns how many went.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	n := 0
	for id, e := range m.games {
		if e.updatedAt.Before(cutoff) {
			delete(m.games, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Info("swept idle practice games", zap.Int("removed", n))
	}
	return n
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
