package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	"sprinklerprep/internal/loader"
	"sprinklerprep/internal/metrics"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/modes"

	"go.uber.org/zap"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrBankNotLoaded    = errors.New("question bank not loaded")
)

// BankLoader produces a fresh bank. *loader.Loader satisfies it.
type BankLoader interface {
	Load(ctx context.Context) (*loader.Bank, error)
}

// QuestionRepository serves the currently loaded question bank. The bank is
// swapped as a whole on reload so readers never see a partial bank.
type QuestionRepository struct {
	mu          sync.RWMutex
	questions   []models.Question
	byID        map[string]int
	diagnostics []models.Diagnostic
	loadedAt    time.Time

	logger *zap.Logger
}

func NewQuestionRepository(logger *zap.Logger) *QuestionRepository {
	return &QuestionRepository{byID: map[string]int{}, logger: logger}
}

// Replace installs bank as the served bank.
func (r *QuestionRepository) Replace(bank *loader.Bank) {
	byID := make(map[string]int, len(bank.Questions))
	for i, q := range bank.Questions {
		byID[q.ID] = i
	}

	r.mu.Lock()
	r.questions = bank.Questions
	r.byID = byID
	r.diagnostics = bank.Diagnostics
	r.loadedAt = bank.LoadedAt
	r.mu.Unlock()

	metrics.SetBankSize(len(bank.Questions))
	for _, d := range bank.Diagnostics {
		metrics.ObserveDiagnostic(string(d.Kind))
	}
}

// Reload runs l and swaps the result in. A failed or empty load leaves the
// current bank in place.
func (r *QuestionRepository) Reload(ctx context.Context, l BankLoader) error {
	bank, err := l.Load(ctx)
	if err != nil {
		metrics.ObserveBankReload(false)
		r.logger.Warn("question bank reload failed, keeping current bank", zap.Error(err))
		return err
	}
	r.Replace(bank)
	metrics.ObserveBankReload(true)
	return nil
}

// Questions returns the served bank in load order. Callers must not modify it.
func (r *QuestionRepository) Questions() []models.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.questions
}

func (r *QuestionRepository) GetAll(f modes.Filter) ([]models.Question, error) {
	qs := r.Questions()
	if qs == nil {
		return nil, ErrBankNotLoaded
	}
	return modes.Apply(qs, f), nil
}

// GetAllWithPagination filters the bank and returns one page of it together
// with the filtered total.
func (r *QuestionRepository) GetAllWithPagination(page, limit int, f modes.Filter) ([]models.Question, int, error) {
	matched, err := r.GetAll(f)
	if err != nil {
		return nil, 0, err
	}
	start, end := models.Paginate(page, limit, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *QuestionRepository) GetByID(id string) (*models.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	q := r.questions[i]
	return &q, nil
}

func (r *QuestionRepository) Categories() []string {
	return modes.Categories(r.Questions())
}

func (r *QuestionRepository) Diagnostics() []models.Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diagnostics
}

func (r *QuestionRepository) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}
