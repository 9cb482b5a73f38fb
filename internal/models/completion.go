package models

import "time"

// GameMode names the quiz surface a completion came from.
type GameMode string

const (
	ModeFullExam    GameMode = "full"
	ModeRapid10     GameMode = "rapid"
	ModeGauntlet    GameMode = "gauntlet"
	ModeSuddenDeath GameMode = "firemarshal"
	ModeFlashcards  GameMode = "flashcards"
)

func (m GameMode) Valid() bool {
	switch m {
	case ModeFullExam, ModeRapid10, ModeGauntlet, ModeSuddenDeath, ModeFlashcards:
		return true
	}
	return false
}

// CategoryStat is a per-category correct/total tally.
type CategoryStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Completion is emitted to the progress collaborator when a game ends.
type Completion struct {
	UserID            string                  `json:"userId"`
	DisplayName       string                  `json:"displayName,omitempty"`
	Mode              GameMode                `json:"mode"`
	Score             int                     `json:"score"`
	Total             int                     `json:"total"`
	MissedQuestionIDs []string                `json:"missedQuestionIds"`
	AllQuestionIDs    []string                `json:"allQuestionIds"`
	CategoryStats     map[string]CategoryStat `json:"categoryStats,omitempty"`
	FinishedAt        time.Time               `json:"finishedAt"`
}

// CorrectIDs returns the ids in AllQuestionIDs that were not missed.
func (c *Completion) CorrectIDs() []string {
	missed := make(map[string]struct{}, len(c.MissedQuestionIDs))
	for _, id := range c.MissedQuestionIDs {
		missed[id] = struct{}{}
	}
	out := make([]string, 0, len(c.AllQuestionIDs))
	for _, id := range c.AllQuestionIDs {
		if _, ok := missed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
