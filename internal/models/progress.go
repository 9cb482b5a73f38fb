package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress holds the running totals of one user.
type UserProgress struct {
	UserID       string    `gorm:"primaryKey" json:"userId"`
	DisplayName  string    `json:"displayName"`
	GamesPlayed  int       `gorm:"not null;default:0" json:"gamesPlayed"`
	TotalScore   int       `gorm:"not null;default:0;index" json:"totalScore"`
	Streak       int       `gorm:"not null;default:0" json:"streak"`
	LastActiveOn string    `gorm:"size:10" json:"lastActiveOn"` // YYYY-MM-DD
	LastActiveAt time.Time `json:"lastActiveAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ModeProgress struct {
	UserID         string   `gorm:"primaryKey" json:"-"`
	Mode           GameMode `gorm:"primaryKey;size:32" json:"mode"`
	Played         int      `gorm:"not null;default:0" json:"played"`
	TotalScore     int      `gorm:"not null;default:0" json:"totalScore"`
	TotalQuestions int      `gorm:"not null;default:0" json:"totalQuestions"`
}

type CategoryProgress struct {
	UserID   string `gorm:"primaryKey" json:"-"`
	Category string `gorm:"primaryKey" json:"category"`
	Correct  int    `gorm:"not null;default:0" json:"correct"`
	Total    int    `gorm:"not null;default:0" json:"total"`
}

// MissedQuestion is a member of a user's missed set. Rows are only ever added.
type MissedQuestion struct {
	UserID     string    `gorm:"primaryKey"`
	QuestionID string    `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"index"`
}

type QuestionMastery struct {
	UserID     string `gorm:"primaryKey"`
	QuestionID string `gorm:"primaryKey"`
	Correct    int    `gorm:"not null;default:0"`
	Mastered   bool   `gorm:"not null;default:false"`
}

// GameHistory is one finished game.
type GameHistory struct {
	gorm.Model
	UserID     string    `gorm:"not null;index" json:"userId"`
	Mode       GameMode  `gorm:"size:32" json:"mode"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	FinishedAt time.Time `gorm:"index" json:"finishedAt"`
}

// ProgressModels lists every table the progress store migrates.
func ProgressModels() []any {
	return []any{
		&UserProgress{},
		&ModeProgress{},
		&CategoryProgress{},
		&MissedQuestion{},
		&QuestionMastery{},
		&GameHistory{},
	}
}

// UserStats is the read model returned for a user.
type UserStats struct {
	UserID        string                  `json:"userId"`
	DisplayName   string                  `json:"displayName"`
	GamesPlayed   int                     `json:"gamesPlayed"`
	TotalScore    int                     `json:"totalScore"`
	Streak        int                     `json:"streak"`
	LastActiveAt  time.Time               `json:"lastActiveAt"`
	Modes         map[GameMode]ModeStat   `json:"stats"`
	Categories    map[string]CategoryStat `json:"categoryStats"`
	MasteredCount int                     `json:"masteredCount"`
	MissedCount   int                     `json:"missedCount"`
}

type ModeStat struct {
	Played         int `json:"played"`
	TotalScore     int `json:"totalScore"`
	TotalQuestions int `json:"totalQuestions"`
}

type LeaderboardEntry struct {
	UserID      string `json:"id"`
	DisplayName string `json:"displayName"`
	GamesPlayed int    `json:"gamesPlayed"`
	TotalScore  int    `json:"totalScore"`
	Streak      int    `json:"streak"`
}
