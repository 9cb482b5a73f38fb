package models

import "strings"

// Question is the canonical four-option question every game mode consumes.
type Question struct {
	ID                      string     `json:"id"`
	Question                string     `json:"question"`
	Options                 []string   `json:"options"`
	CorrectIndex            int        `json:"correct"`
	Explanation             string     `json:"explanation"`
	Category                string     `json:"category"`
	Topic                   string     `json:"topic"`
	Citation                string     `json:"citation"`
	Tags                    []string   `json:"tags"`
	Difficulty              Difficulty `json:"difficulty"`
	IsJurisdictionAmendment bool       `json:"is_mn_amendment"`
	SourceFile              string     `json:"sourceFile"`
	Media                   *Media     `json:"media,omitempty"`
}

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ParseDifficulty maps free-form source values onto the three known levels.
// Anything unrecognised is Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy
	case "hard":
		return Hard
	default:
		return Medium
	}
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// placeholders used when a source record is missing pieces
const (
	NoQuestionText    = "No question text"
	NoExplanation     = "No explanation provided."
	DefaultCategory   = "General"
	DefaultTopic      = "General"
	OptionPlaceholder = "N/A"
	OptionCount       = 4
)

// FallbackOptions is used for records that carry neither options nor an
// answer/distractors pair. The first entry is treated as correct.
var FallbackOptions = []string{"True", "False", "N/A", "Unknown"}
