package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprinklerprep/internal/models"
)

const (
	DefaultDuration     = 120 * time.Minute
	DefaultMaxQuestions = 100
	DefaultTickInterval = time.Second
)

var (
	ErrNotStarted         = errors.New("exam session not started")
	ErrSubmitted          = errors.New("exam session already submitted")
	ErrEmptyPool          = errors.New("no questions available for an exam")
	ErrPositionOutOfRange = errors.New("question position out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")
)

// ConfirmationRequiredError is returned by a manual Submit that was not
// confirmed. It is a gate, not a failure: nothing about the session changes.
type ConfirmationRequiredError struct {
	Unanswered int
}

func (e *ConfirmationRequiredError) Error() string {
	if e.Unanswered > 0 {
		return fmt.Sprintf("%d unanswered questions; confirmation required", e.Unanswered)
	}
	return "submission cannot be undone; confirmation required"
}

// ConfirmFunc decides whether a manual submission goes ahead. It receives the
// number of unanswered questions.
type ConfirmFunc func(unanswered int) bool

// Confirmed is a ConfirmFunc that always agrees.
func Confirmed(int) bool { return true }

type State int

const (
	StateUninitialized State = iota
	StateInProgress
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateSubmitted:
		return "submitted"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	Duration     time.Duration
	MaxQuestions int
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Duration:     DefaultDuration,
		MaxQuestions: DefaultMaxQuestions,
		TickInterval: DefaultTickInterval,
	}
}

// StateStore is durable key-value storage for the in-progress snapshot.
// Load returns statestore.ErrNotFound when nothing is stored under key.
type StateStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Recorder receives the completion of every submitted exam.
type Recorder interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Snapshot is the persisted form of an in-progress session.
type Snapshot struct {
	Questions       []models.Question `json:"questions"`
	Answers         map[int]int       `json:"answers"`
	MarkedForReview []int             `json:"markedForReview"`
	StartTimestamp  int64             `json:"startTimestamp"` // epoch millis
	ProctorStrikes  int               `json:"proctorStrikes"`
	IsSubmitted     bool              `json:"isSubmitted"`
}

// Result is computed exactly once, at submission.
type Result struct {
	Score         int                            `json:"score"`
	Total         int                            `json:"total"`
	MissedIDs     []string                       `json:"missedQuestionIds"`
	AllIDs        []string                       `json:"allQuestionIds"`
	CategoryStats map[string]models.CategoryStat `json:"categoryStats"`
	Automatic     bool                           `json:"automatic"`
	SubmittedAt   time.Time                      `json:"submittedAt"`
}

type EventType string

const (
	EventTick      EventType = "tick"
	EventStrike    EventType = "proctor_strike"
	EventSubmitted EventType = "submitted"
)

// Event is pushed to subscribers as the session changes.
type Event struct {
	Type             EventType `json:"type"`
	RemainingSeconds int       `json:"remainingSeconds"`
	ProctorStrikes   int       `json:"proctorStrikes,omitempty"`
	Result           *Result   `json:"result,omitempty"`
}
