package exam

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"sprinklerprep/internal/metrics"
	"sprinklerprep/internal/models"
	"sprinklerprep/internal/statestore"

	"go.uber.org/zap"
)

// StateKey is the storage key of an owner's in-progress exam.
func StateKey(owner string) string {
	return "exam:state:" + owner
}

// Session is one owner's timed exam. All methods are safe for concurrent use;
// the countdown goroutine and request handlers share the same mutex.
type Session struct {
	mu sync.Mutex

	owner    string
	cfg      Config
	pool     func() []models.Question
	store    StateStore
	recorder Recorder
	clock    Clock
	rng      *rand.Rand
	logger   *zap.Logger

	createdAt time.Time
	state     State
	questions []models.Question
	answers   map[int]int
	marked    map[int]struct{}
	startedAt time.Time
	strikes   int
	result    *Result
	restored  bool
	running   bool

	subs   map[int]func(Event)
	nextID int
}

type Option func(*Session)

func WithConfig(cfg Config) Option {
	return func(s *Session) {
		if cfg.Duration > 0 {
			s.cfg.Duration = cfg.Duration
		}
		if cfg.MaxQuestions > 0 {
			s.cfg.MaxQuestions = cfg.MaxQuestions
		}
		if cfg.TickInterval > 0 {
			s.cfg.TickInterval = cfg.TickInterval
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// NewSession builds an uninitialized session. pool is consulted on every fresh
// start so a reloaded bank is picked up by the next exam.
func NewSession(owner string, pool func() []models.Question, store StateStore, recorder Recorder, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		owner:    owner,
		cfg:      DefaultConfig(),
		pool:     pool,
		store:    store,
		recorder: recorder,
		clock:    systemClock{},
		logger:   logger.With(zap.String("owner", owner)),
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.createdAt = s.clock.Now()
	return s
}

func (s *Session) Owner() string { return s.owner }

// Settled reports whether the session has had no countdown for longer than
// maxIdle: it was submitted, or it never got past a failed start.
func (s *Session) Settled(maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.state == StateInProgress {
		return false
	}
	since := s.createdAt
	if s.result != nil {
		since = s.result.SubmittedAt
	}
	return s.clock.Now().Sub(since) > maxIdle
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start resumes a persisted exam if one is still running, otherwise begins a
// fresh one. It is a no-op once the session has left Uninitialized.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return nil
	}
	if s.restoreLocked(ctx) {
		s.restored = true
		metrics.ObserveExamStarted(true)
		s.logger.Info("resumed exam",
			zap.Int("questions", len(s.questions)),
			zap.Int("answered", len(s.answers)),
			zap.Duration("remaining", s.remainingLocked()))
		return nil
	}
	if err := s.startFreshLocked(ctx); err != nil {
		return err
	}
	metrics.ObserveExamStarted(false)
	return nil
}

// Retry discards whatever this session holds and starts a fresh exam.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startFreshLocked(ctx); err != nil {
		return err
	}
	metrics.ObserveExamStarted(false)
	return nil
}

func (s *Session) restoreLocked(ctx context.Context) bool {
	data, err := s.store.Load(ctx, StateKey(s.owner))
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			s.logger.Warn("failed to read persisted exam", zap.Error(err))
		}
		return false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding corrupt persisted exam", zap.Error(err))
		return false
	}
	if snap.IsSubmitted || snap.StartTimestamp == 0 || len(snap.Questions) == 0 {
		return false
	}
	startedAt := time.UnixMilli(snap.StartTimestamp)
	if s.clock.Now().Sub(startedAt) >= s.cfg.Duration {
		// expired while nobody was watching; the unsaved attempt is dropped
		return false
	}

	s.questions = snap.Questions
	s.answers = make(map[int]int, len(snap.Answers))
	for pos, opt := range snap.Answers {
		if pos >= 0 && pos < len(snap.Questions) && opt >= 0 && opt < models.OptionCount {
			s.answers[pos] = opt
		}
	}
	s.marked = make(map[int]struct{}, len(snap.MarkedForReview))
	for _, pos := range snap.MarkedForReview {
		if pos >= 0 && pos < len(snap.Questions) {
			s.marked[pos] = struct{}{}
		}
	}
	s.startedAt = startedAt
	s.strikes = snap.ProctorStrikes
	s.result = nil
	s.state = StateInProgress
	return true
}

func (s *Session) startFreshLocked(ctx context.Context) error {
	pool := s.pool()
	if len(pool) == 0 {
		return ErrEmptyPool
	}

	shuffled := make([]models.Question, len(pool))
	copy(shuffled, pool)
	s.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if len(shuffled) > s.cfg.MaxQuestions {
		shuffled = shuffled[:s.cfg.MaxQuestions]
	}

	if err := s.store.Delete(ctx, StateKey(s.owner)); err != nil {
		s.logger.Warn("failed to clear persisted exam", zap.Error(err))
	}

	s.questions = shuffled
	s.answers = make(map[int]int)
	s.marked = make(map[int]struct{})
	s.startedAt = s.clock.Now()
	s.strikes = 0
	s.result = nil
	s.restored = false
	s.state = StateInProgress
	s.persistLocked(ctx)

	s.logger.Info("started exam", zap.Int("questions", len(s.questions)))
	return nil
}

func (s *Session) remainingLocked() time.Duration {
	if s.state != StateInProgress {
		return 0
	}
	left := s.cfg.Duration - s.clock.Now().Sub(s.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Remaining is always derived from the start timestamp, never from a
// decrementing counter, so suspended processes catch up on their next tick.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func remainingSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Tick re-evaluates the countdown and auto-submits when it reaches zero.
// It reports the remaining time and whether this call performed the submit.
func (s *Session) Tick(ctx context.Context) (time.Duration, bool) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return 0, false
	}
	left := s.remainingLocked()
	if left > 0 {
		subs := s.subscribersLocked()
		s.mu.Unlock()
		publish(subs, Event{Type: EventTick, RemainingSeconds: remainingSeconds(left)})
		return left, false
	}
	res, completion := s.submitLocked(ctx, true)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.emit(ctx, completion)
	publish(subs, Event{Type: EventSubmitted, Result: res})
	return 0, true
}

// Run drives Tick on the configured interval until the session leaves
// InProgress or ctx is cancelled. Concurrent calls collapse into one loop.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	s.running = true
	interval := s.cfg.TickInterval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.Tick(ctx)
			// checked and cleared together so a Retry racing the final tick
			// can always start a new loop
			s.mu.Lock()
			if s.state != StateInProgress {
				s.running = false
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}
}

// expireLocked submits automatically when the deadline passed between ticks,
// so no mutation can land after the timer has run out.
func (s *Session) expireLocked(ctx context.Context) (*Result, *models.Completion) {
	if s.state == StateInProgress && s.remainingLocked() == 0 {
		return s.submitLocked(ctx, true)
	}
	return nil, nil
}

func (s *Session) guardLocked(ctx context.Context) (func(), error) {
	if s.state == StateUninitialized {
		return func() {}, ErrNotStarted
	}
	res, completion := s.expireLocked(ctx)
	if s.state == StateSubmitted {
		if completion == nil {
			return func() {}, ErrSubmitted
		}
		subs := s.subscribersLocked()
		return func() {
			s.emit(ctx, completion)
			publish(subs, Event{Type: EventSubmitted, Result: res})
		}, ErrSubmitted
	}
	return func() {}, nil
}

// Answer records opt as the selected option for the question at pos,
// replacing any earlier selection.
func (s *Session) Answer(ctx context.Context, pos, opt int) error {
	s.mu.Lock()
	after, err := s.guardLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		after()
		return err
	}
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.questions) {
		return ErrPositionOutOfRange
	}
	if opt < 0 || opt >= len(s.questions[pos].Options) {
		return ErrOptionOutOfRange
	}
	s.answers[pos] = opt
	s.persistLocked(ctx)
	return nil
}

// ToggleReview flips the review flag of pos and returns the new value.
func (s *Session) ToggleReview(ctx context.Context, pos int) (bool, error) {
	s.mu.Lock()
	after, err := s.guardLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		after()
		return false, err
	}
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.questions) {
		return false, ErrPositionOutOfRange
	}
	_, marked := s.marked[pos]
	if marked {
		delete(s.marked, pos)
	} else {
		s.marked[pos] = struct{}{}
	}
	s.persistLocked(ctx)
	return !marked, nil
}

// VisibilityLost records a proctor strike. It returns the strike count and
// whether a strike was recorded; hidden events outside an in-progress exam
// are ignored.
func (s *Session) VisibilityLost(ctx context.Context) (int, bool) {
	s.mu.Lock()
	after, err := s.guardLocked(ctx)
	if err != nil {
		strikes := s.strikes
		s.mu.Unlock()
		after()
		return strikes, false
	}
	s.strikes++
	strikes := s.strikes
	left := s.remainingLocked()
	s.persistLocked(ctx)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	metrics.ObserveProctorStrike()
	s.logger.Warn("exam window lost focus", zap.Int("strikes", strikes))
	publish(subs, Event{Type: EventStrike, RemainingSeconds: remainingSeconds(left), ProctorStrikes: strikes})
	return strikes, true
}

// Submit finishes the exam. A manual submission (automatic=false) only goes
// ahead when confirm accepts the number of unanswered questions; otherwise a
// *ConfirmationRequiredError is returned and nothing changes. An automatic
// submission never asks.
func (s *Session) Submit(ctx context.Context, automatic bool, confirm ConfirmFunc) (*Result, error) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.state == StateSubmitted {
		s.mu.Unlock()
		return nil, ErrSubmitted
	}
	if res, completion := s.expireLocked(ctx); completion != nil {
		// the deadline beat the request: the automatic submit wins
		subs := s.subscribersLocked()
		s.mu.Unlock()
		s.emit(ctx, completion)
		publish(subs, Event{Type: EventSubmitted, Result: res})
		return res, nil
	}
	if !automatic {
		unanswered := len(s.questions) - len(s.answers)
		if confirm == nil || !confirm(unanswered) {
			s.mu.Unlock()
			return nil, &ConfirmationRequiredError{Unanswered: unanswered}
		}
	}
	res, completion := s.submitLocked(ctx, automatic)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.emit(ctx, completion)
	publish(subs, Event{Type: EventSubmitted, Result: res})
	return res, nil
}

// submitLocked scores the exam and freezes the session. Callers must hold mu
// and have checked that the session is in progress.
func (s *Session) submitLocked(ctx context.Context, automatic bool) (*Result, *models.Completion) {
	res := Score(s.questions, s.answers)
	res.Automatic = automatic
	res.SubmittedAt = s.clock.Now()

	s.result = res
	s.state = StateSubmitted

	if err := s.store.Delete(ctx, StateKey(s.owner)); err != nil {
		s.logger.Warn("failed to clear persisted exam", zap.Error(err))
	}

	metrics.ObserveExamSubmitted(automatic, res.Score, res.Total)
	s.logger.Info("submitted exam",
		zap.Bool("automatic", automatic),
		zap.Int("score", res.Score),
		zap.Int("total", res.Total),
		zap.Int("proctor_strikes", s.strikes))

	return res, &models.Completion{
		UserID:            s.owner,
		Mode:              models.ModeFullExam,
		Score:             res.Score,
		Total:             res.Total,
		MissedQuestionIDs: res.MissedIDs,
		AllQuestionIDs:    res.AllIDs,
		CategoryStats:     res.CategoryStats,
		FinishedAt:        res.SubmittedAt,
	}
}

// Score grades answers against questions. Unanswered positions count as
// missed.
func Score(questions []models.Question, answers map[int]int) *Result {
	res := &Result{
		Total:         len(questions),
		MissedIDs:     []string{},
		AllIDs:        make([]string, 0, len(questions)),
		CategoryStats: make(map[string]models.CategoryStat),
	}
	for pos, q := range questions {
		res.AllIDs = append(res.AllIDs, q.ID)
		stat := res.CategoryStats[q.Category]
		stat.Total++
		if opt, ok := answers[pos]; ok && opt == q.CorrectIndex {
			res.Score++
			stat.Correct++
		} else {
			res.MissedIDs = append(res.MissedIDs, q.ID)
		}
		res.CategoryStats[q.Category] = stat
	}
	return res
}

func (s *Session) emit(ctx context.Context, c *models.Completion) {
	if c == nil || s.recorder == nil {
		return
	}
	if err := s.recorder.RecordCompletion(ctx, *c); err != nil {
		s.logger.Error("failed to record exam completion", zap.Error(err))
	}
}

func (s *Session) snapshotLocked() Snapshot {
	marked := make([]int, 0, len(s.marked))
	for pos := range s.marked {
		marked = append(marked, pos)
	}
	sort.Ints(marked)
	answers := make(map[int]int, len(s.answers))
	for pos, opt := range s.answers {
		answers[pos] = opt
	}
	return Snapshot{
		Questions:       s.questions,
		Answers:         answers,
		MarkedForReview: marked,
		StartTimestamp:  s.startedAt.UnixMilli(),
		ProctorStrikes:  s.strikes,
		IsSubmitted:     s.state == StateSubmitted,
	}
}

// persistLocked writes the snapshot. Storage failures are logged and the
// in-memory session carries on.
func (s *Session) persistLocked(ctx context.Context) {
	if s.state != StateInProgress {
		return
	}
	data, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		s.logger.Error("failed to encode exam snapshot", zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, StateKey(s.owner), data); err != nil {
		s.logger.Warn("failed to persist exam", zap.Error(err))
	}
}

// Subscribe registers fn for session events and returns a function that
// removes it. fn is called without the session lock held.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

type View struct {
	Owner            string                `json:"owner"`
	State            State                 `json:"state"`
	Restored         bool                  `json:"restored"`
	RemainingSeconds int                   `json:"remainingSeconds"`
	Questions        []models.QuestionCard `json:"questions"`
	Answers          map[string]int        `json:"answers"`
	MarkedForReview  []int                 `json:"markedForReview"`
	ProctorStrikes   int                   `json:"proctorStrikes"`
	Result           *Result               `json:"result,omitempty"`
}

// View returns a read-only picture of the session for clients.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	v := View{
		Owner:            s.owner,
		State:            s.state,
		Restored:         s.restored,
		RemainingSeconds: remainingSeconds(s.remainingLocked()),
		Questions:        make([]models.QuestionCard, 0, len(s.questions)),
		Answers:          make(map[string]int, len(s.answers)),
		MarkedForReview:  snap.MarkedForReview,
		ProctorStrikes:   s.strikes,
		Result:           s.result,
	}
	reveal := s.state == StateSubmitted
	for i := range s.questions {
		v.Questions = append(v.Questions, models.NewQuestionCard(&s.questions[i], reveal))
	}
	for pos, opt := range s.answers {
		v.Answers[strconv.Itoa(pos)] = opt
	}
	return v
}
