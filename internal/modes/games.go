package modes

import (
	"errors"
	"math/rand"

	"sprinklerprep/internal/models"
)

var (
	ErrGameOver         = errors.New("game is over")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrNoQuestions      = errors.New("no questions to play")
	ErrAlreadyRevealed  = errors.New("card already revealed")
	ErrNotSupported     = errors.New("operation not supported by this mode")
)

// Outcome is the result of answering the current question.
type Outcome struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Explanation  string `json:"explanation"`
	Finished     bool   `json:"finished"`

	// Missed is set when this answer puts a question in the missed set right
	// away instead of waiting for the game to finish.
	Missed string `json:"-"`
}

// Game is a single-player run of one of the practice modes.
type Game interface {
	Mode() models.GameMode
	Current() *models.Question
	Answer(opt int) (Outcome, error)
	Finished() bool
	// Completion is only meaningful once Finished reports true.
	Completion(userID string) models.Completion
	Progress() (position, total, score int)
}

func grade(q *models.Question, opt int) (Outcome, error) {
	if opt < 0 || opt >= len(q.Options) {
		return Outcome{}, ErrOptionOutOfRange
	}
	return Outcome{
		Correct:      opt == q.CorrectIndex,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
	}, nil
}

func ids(qs []models.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

// Round is a fixed list of questions answered once each, in order. Rapid 10
// and the missed-question gauntlet are both rounds.
type Round struct {
	mode      models.GameMode
	questions []models.Question
	pos       int
	score     int
	missed    []string
}

func NewRapidRound(pool []models.Question, rng *rand.Rand) (*Round, error) {
	return newRound(models.ModeRapid10, DrawRapid(pool, rng))
}

func NewGauntletRound(pool []models.Question, missed []string) (*Round, error) {
	return newRound(models.ModeGauntlet, DrawGauntlet(pool, missed))
}

func newRound(mode models.GameMode, qs []models.Question) (*Round, error) {
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return &Round{mode: mode, questions: qs, missed: []string{}}, nil
}

func (r *Round) Mode() models.GameMode { return r.mode }

func (r *Round) Current() *models.Question {
	if r.Finished() {
		return nil
	}
	return &r.questions[r.pos]
}

func (r *Round) Answer(opt int) (Outcome, error) {
	q := r.Current()
	if q == nil {
		return Outcome{}, ErrGameOver
	}
	out, err := grade(q, opt)
	if err != nil {
		return Outcome{}, err
	}
	if out.Correct {
		r.score++
	} else {
		r.missed = append(r.missed, q.ID)
	}
	r.pos++
	out.Finished = r.Finished()
	return out, nil
}

func (r *Round) Finished() bool { return r.pos >= len(r.questions) }

func (r *Round) Progress() (int, int, int) { return r.pos, len(r.questions), r.score }

func (r *Round) Completion(userID string) models.Completion {
	return models.Completion{
		UserID:            userID,
		Mode:              r.mode,
		Score:             r.score,
		Total:             len(r.questions),
		MissedQuestionIDs: append([]string(nil), r.missed...),
		AllQuestionIDs:    ids(r.questions),
	}
}

// SuddenDeath runs through an endless shuffled stream of questions until the
// first wrong answer.
type SuddenDeath struct {
	pool   []models.Question
	rng    *rand.Rand
	queue  []models.Question
	pos    int
	score  int
	failed string
}

func NewSuddenDeath(pool []models.Question, rng *rand.Rand) (*SuddenDeath, error) {
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}
	return &SuddenDeath{pool: pool, rng: rng, queue: Shuffled(pool, rng)}, nil
}

func (s *SuddenDeath) Mode() models.GameMode { return models.ModeSuddenDeath }

func (s *SuddenDeath) Current() *models.Question {
	if s.Finished() {
		return nil
	}
	return &s.queue[s.pos]
}

func (s *SuddenDeath) Answer(opt int) (Outcome, error) {
	q := s.Current()
	if q == nil {
		return Outcome{}, ErrGameOver
	}
	out, err := grade(q, opt)
	if err != nil {
		return Outcome{}, err
	}
	if !out.Correct {
		s.failed = q.ID
		out.Finished = true
		return out, nil
	}
	s.score++
	s.pos++
	if s.pos >= len(s.queue) {
		s.queue = append(s.queue, Shuffled(s.pool, s.rng)...)
	}
	return out, nil
}

func (s *SuddenDeath) Finished() bool { return s.failed != "" }

// Progress reports a zero total: the run has no fixed length.
func (s *SuddenDeath) Progress() (int, int, int) { return s.pos, 0, s.score }

// Completion counts the streak as the score and the failed question as the
// single miss.
func (s *SuddenDeath) Completion(userID string) models.Completion {
	return models.Completion{
		UserID:            userID,
		Mode:              models.ModeSuddenDeath,
		Score:             s.score,
		Total:             s.score + 1,
		MissedQuestionIDs: []string{s.failed},
		AllQuestionIDs:    []string{s.failed},
	}
}

// Deck is a flashcard deck. It never finishes on its own; the player browses
// with Next and Prev (wrapping around) and either guesses or reveals each card.
type Deck struct {
	cards    []models.Question
	pos      int
	revealed bool
	guessed  int
	correct  int
}

func NewDeck(pool []models.Question, rng *rand.Rand) (*Deck, error) {
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}
	return &Deck{cards: Shuffled(pool, rng)}, nil
}

func (d *Deck) Mode() models.GameMode { return models.ModeFlashcards }

func (d *Deck) Current() *models.Question { return &d.cards[d.pos] }

func (d *Deck) Revealed() bool { return d.revealed }

// Answer records a guess on the current card and flips it. A wrong guess
// marks the card missed.
func (d *Deck) Answer(opt int) (Outcome, error) {
	if d.revealed {
		return Outcome{}, ErrAlreadyRevealed
	}
	q := d.Current()
	out, err := grade(q, opt)
	if err != nil {
		return Outcome{}, err
	}
	d.revealed = true
	d.guessed++
	if out.Correct {
		d.correct++
	} else {
		out.Missed = q.ID
	}
	return out, nil
}

// Reveal flips the current card without a guess, which counts as a miss.
func (d *Deck) Reveal() (Outcome, error) {
	if d.revealed {
		return Outcome{}, ErrAlreadyRevealed
	}
	q := d.Current()
	d.revealed = true
	return Outcome{CorrectIndex: q.CorrectIndex, Explanation: q.Explanation, Missed: q.ID}, nil
}

func (d *Deck) Next() {
	d.pos = (d.pos + 1) % len(d.cards)
	d.revealed = false
}

func (d *Deck) Prev() {
	d.pos = (d.pos - 1 + len(d.cards)) % len(d.cards)
	d.revealed = false
}

func (d *Deck) Finished() bool { return false }

func (d *Deck) Progress() (int, int, int) { return d.pos, len(d.cards), d.correct }

// Completion is never recorded for decks: flashcards only feed the missed set.
func (d *Deck) Completion(userID string) models.Completion {
	return models.Completion{
		UserID: userID,
		Mode:   models.ModeFlashcards,
		Score:  d.correct,
		Total:  d.guessed,
	}
}
