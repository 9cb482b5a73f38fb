package loader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"sprinklerprep/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyBank is returned when no source yielded a single usable question.
var ErrEmptyBank = errors.New("question bank is empty")

const defaultConcurrency = 4

// Bank is the result of one load cycle. It is never mutated after Load
// returns; a reload produces a new Bank.
type Bank struct {
	Questions   []models.Question
	Diagnostics []models.Diagnostic
	Documents   int
	LoadedAt    time.Time
}

// Loader merges every document from its sources into one deduplicated bank.
type Loader struct {
	sources     []Source
	normalizer  *Normalizer
	logger      *zap.Logger
	concurrency int
}

type Option func(*Loader)

// WithConcurrency bounds how many documents are fetched at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithNormalizer replaces the default normalizer (tests seed the shuffle).
func WithNormalizer(n *Normalizer) Option {
	return func(l *Loader) { l.normalizer = n }
}

func New(logger *zap.Logger, sources []Source, opts ...Option) *Loader {
	l := &Loader{
		sources:     sources,
		normalizer:  NewNormalizer(rand.New(rand.NewSource(time.Now().UnixNano()))),
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type docRef struct {
	source Source
	name   string
}

func (r docRef) label() string { return r.source.Name() + "/" + r.name }

type fetched struct {
	records []any
	err     error
}

// Load fetches all documents, normalizes their records and deduplicates by id
// with the last processed record winning. A failing document is logged and
// skipped. When nothing usable is found the bank is still returned (with its
// diagnostics) together with ErrEmptyBank.
func (l *Loader) Load(ctx context.Context) (*Bank, error) {
	bank := &Bank{LoadedAt: time.Now()}

	var refs []docRef
	for _, src := range l.sources {
		names, err := src.List(ctx)
		if err != nil {
			l.logger.Warn("failed to list question source", zap.String("source", src.Name()), zap.Error(err))
			bank.Diagnostics = append(bank.Diagnostics, models.Diagnostic{
				Kind:       models.DiagSourceFailed,
				SourceFile: src.Name(),
				Message:    err.Error(),
			})
			continue
		}
		for _, name := range names {
			refs = append(refs, docRef{source: src, name: name})
		}
	}
	l.logger.Info("loading questions", zap.Int("documents", len(refs)))

	results := make([]fetched, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			results[i] = fetchRecords(gctx, ref)
			// a broken document never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	for i, ref := range refs {
		res := results[i]
		if res.err != nil {
			kind := models.DiagSourceFailed
			if errors.Is(res.err, errNoRecords) {
				kind = models.DiagNoRecords
			}
			l.logger.Warn("skipping question document", zap.String("document", ref.label()), zap.Error(res.err))
			bank.Diagnostics = append(bank.Diagnostics, models.Diagnostic{
				Kind:       kind,
				SourceFile: ref.name,
				Message:    res.err.Error(),
			})
			continue
		}
		bank.Documents++

		accepted := 0
		for _, raw := range res.records {
			q, diags := l.normalizer.Normalize(raw, ref.name)
			bank.Diagnostics = append(bank.Diagnostics, diags...)
			if q == nil || q.ID == "" {
				continue
			}
			accepted++
			if pos, dup := byID[q.ID]; dup {
				prev := bank.Questions[pos].SourceFile
				bank.Diagnostics = append(bank.Diagnostics, models.Diagnostic{
					Kind:       models.DiagDuplicateID,
					SourceFile: ref.name,
					QuestionID: q.ID,
					Message:    fmt.Sprintf("replaces the record from %s", prev),
				})
				bank.Questions[pos] = *q
				continue
			}
			byID[q.ID] = len(bank.Questions)
			bank.Questions = append(bank.Questions, *q)
		}
		l.logger.Info("loaded question document",
			zap.String("document", ref.label()),
			zap.Int("records", len(res.records)),
			zap.Int("accepted", accepted))
	}

	l.logger.Info("question bank loaded",
		zap.Int("questions", len(bank.Questions)),
		zap.Int("diagnostics", len(bank.Diagnostics)))

	if len(bank.Questions) == 0 {
		return bank, ErrEmptyBank
	}
	return bank, nil
}

func fetchRecords(ctx context.Context, ref docRef) fetched {
	data, err := ref.source.Fetch(ctx, ref.name)
	if err != nil {
		return fetched{err: fmt.Errorf("fetch: %w", err)}
	}
	doc, keys, err := parseDocument(ref.name, data)
	if err != nil {
		return fetched{err: fmt.Errorf("parse: %w", err)}
	}
	records, err := extractRecords(doc, keys)
	if err != nil {
		return fetched{err: err}
	}
	return fetched{records: records}
}
