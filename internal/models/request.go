package models

import "time"

// body of PUT /exam/{owner}/answers/{pos} and POST /games/{id}/answer
type AnswerRequest struct {
	Option *int `json:"option"`
}

func (r *AnswerRequest) Validate() error {
	if r.Option == nil {
		return &ErrorResponse{Code: "missing_option", Message: "option is required"}
	}
	if *r.Option < 0 || *r.Option >= OptionCount {
		return &ErrorResponse{Code: "invalid_option", Message: "option must be between 0 and 3"}
	}
	return nil
}

type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

func (r *VisibilityRequest) Validate() error { return nil }

type SubmitRequest struct {
	Confirm bool `json:"confirm"`
}

func (r *SubmitRequest) Validate() error { return nil }

// body of POST /progress/{userId}/results
type CompletionRequest struct {
	DisplayName       string                  `json:"displayName"`
	Mode              GameMode                `json:"mode"`
	Score             int                     `json:"score"`
	Total             int                     `json:"total"`
	MissedQuestionIDs []string                `json:"missedQuestionIds"`
	AllQuestionIDs    []string                `json:"allQuestionIds"`
	CategoryStats     map[string]CategoryStat `json:"categoryStats"`
}

func (r *CompletionRequest) Validate() error {
	if !r.Mode.Valid() {
		return &ErrorResponse{Code: "invalid_mode", Message: "unknown game mode"}
	}
	if r.Score < 0 || r.Total < 0 || r.Score > r.Total {
		return &ErrorResponse{Code: "invalid_score", Message: "score must be between 0 and total"}
	}
	return nil
}

func (r *CompletionRequest) Completion(userID string, finishedAt time.Time) Completion {
	return Completion{
		UserID:            userID,
		DisplayName:       r.DisplayName,
		Mode:              r.Mode,
		Score:             r.Score,
		Total:             r.Total,
		MissedQuestionIDs: r.MissedQuestionIDs,
		AllQuestionIDs:    r.AllQuestionIDs,
		CategoryStats:     r.CategoryStats,
		FinishedAt:        finishedAt,
	}
}

// body of POST /games
type StartGameRequest struct {
	Mode           GameMode `json:"mode"`
	UserID         string   `json:"userId"`
	AmendmentsOnly bool     `json:"mnOnly"`
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	Search         string   `json:"search"`
}

func (r *StartGameRequest) Validate() error {
	if r.Mode == "" {
		return &ErrorResponse{Code: "missing_mode", Message: "mode is required"}
	}
	if !r.Mode.Valid() || r.Mode == ModeFullExam {
		return &ErrorResponse{Code: "invalid_mode", Message: "mode must be one of rapid, gauntlet, firemarshal, flashcards"}
	}
	return nil
}
