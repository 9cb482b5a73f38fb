package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprinklerprep/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid completion")
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	HistoryLimit            = 20
	MasteryThreshold        = 3

	anonymous = "Anonymous"
	dayLayout = "2006-01-02"
)

// Service records finished games and answers progress queries.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Service)

// WithLocation sets the calendar used for streak days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{db: db, logger: logger, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordCompletion applies one finished game to the user's progress. All
// writes happen in a single transaction.
func (s *Service) RecordCompletion(ctx context.Context, c models.Completion) error {
	if c.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, c.Mode)
	}
	if c.Score < 0 || c.Total < 0 {
		return fmt.Errorf("%w: negative score or total", ErrInvalidInput)
	}
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.GameHistory{
			UserID:     c.UserID,
			Mode:       c.Mode,
			Score:      c.Score,
			Total:      c.Total,
			FinishedAt: finished,
		}).Error; err != nil {
			return err
		}
		if err := s.updateTotals(tx, c, finished); err != nil {
			return err
		}
		if err := updateMode(tx, c); err != nil {
			return err
		}
		if err := updateCategories(tx, c); err != nil {
			return err
		}
		if err := addMissed(tx, c.UserID, c.MissedQuestionIDs, finished); err != nil {
			return err
		}
		return updateMastery(tx, c.UserID, c.CorrectIDs())
	})
	if err != nil {
		s.logger.Error("failed to record completion",
			zap.String("user_id", c.UserID),
			zap.String("mode", string(c.Mode)),
			zap.Error(err))
		return err
	}

	s.logger.Info("recorded completion",
		zap.String("user_id", c.UserID),
		zap.String("mode", string(c.Mode)),
		zap.Int("score", c.Score),
		zap.Int("total", c.Total))
	return nil
}

func (s *Service) updateTotals(tx *gorm.DB, c models.Completion, finished time.Time) error {
	var up models.UserProgress
	err := tx.First(&up, "user_id = ?", c.UserID).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if isNew {
		up = models.UserProgress{UserID: c.UserID}
	} else if err != nil {
		return err
	}

	day := finished.In(s.loc).Format(dayLayout)
	up.Streak = NextStreak(up.LastActiveOn, up.Streak, day)
	if day >= up.LastActiveOn {
		up.LastActiveOn = day
		up.LastActiveAt = finished
	}
	up.GamesPlayed++
	up.TotalScore += c.Score
	if c.DisplayName != "" {
		up.DisplayName = c.DisplayName
	}
	return persist(tx, &up, isNew)
}

// persist inserts rows that were not found and updates the others.
func persist(tx *gorm.DB, row any, isNew bool) error {
	if isNew {
		return tx.Create(row).Error
	}
	return tx.Save(row).Error
}

// NextStreak returns the streak after a game played on day, given the day and
// streak of the previous game. Days are YYYY-MM-DD. Same day keeps the
// streak, the following day extends it, any gap resets it to 1.
func NextStreak(lastDay string, streak int, day string) int {
	if lastDay == "" {
		return 1
	}
	last, err := time.Parse(dayLayout, lastDay)
	if err != nil {
		return 1
	}
	switch {
	case day == lastDay, day < lastDay:
		if streak < 1 {
			return 1
		}
		return streak
	case last.AddDate(0, 0, 1).Format(dayLayout) == day:
		return streak + 1
	default:
		return 1
	}
}

func updateMode(tx *gorm.DB, c models.Completion) error {
	var mp models.ModeProgress
	err := tx.First(&mp, "user_id = ? AND mode = ?", c.UserID, c.Mode).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if isNew {
		mp = models.ModeProgress{UserID: c.UserID, Mode: c.Mode}
	} else if err != nil {
		return err
	}
	mp.Played++
	mp.TotalScore += c.Score
	mp.TotalQuestions += c.Total
	return persist(tx, &mp, isNew)
}

func updateCategories(tx *gorm.DB, c models.Completion) error {
	for category, stat := range c.CategoryStats {
		var cp models.CategoryProgress
		err := tx.First(&cp, "user_id = ? AND category = ?", c.UserID, category).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if isNew {
			cp = models.CategoryProgress{UserID: c.UserID, Category: category}
		} else if err != nil {
			return err
		}
		cp.Correct += stat.Correct
		cp.Total += stat.Total
		if err := persist(tx, &cp, isNew); err != nil {
			return err
		}
	}
	return nil
}

func addMissed(tx *gorm.DB, userID string, ids []string, at time.Time) error {
	for _, id := range ids {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.MissedQuestion{UserID: userID, QuestionID: id, CreatedAt: at}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func updateMastery(tx *gorm.DB, userID string, correct []string) error {
	for _, id := range correct {
		var qm models.QuestionMastery
		err := tx.First(&qm, "user_id = ? AND question_id = ?", userID, id).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if isNew {
			qm = models.QuestionMastery{UserID: userID, QuestionID: id}
		} else if err != nil {
			return err
		}
		qm.Correct++
		qm.Mastered = qm.Correct >= MasteryThreshold
		if err := persist(tx, &qm, isNew); err != nil {
			return err
		}
	}
	return nil
}

// RecordMissed adds questionIDs to the missed set of userID without counting
// a game. Flashcards use it when a card is revealed or guessed wrong.
func (s *Service) RecordMissed(ctx context.Context, userID string, questionIDs []string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if len(questionIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return addMissed(tx, userID, questionIDs, s.now())
	})
}

// Stats returns the aggregate progress of userID.
func (s *Service) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	db := s.db.WithContext(ctx)

	var up models.UserProgress
	err := db.First(&up, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var modes []models.ModeProgress
	if err := db.Where("user_id = ?", userID).Find(&modes).Error; err != nil {
		return nil, err
	}
	var cats []models.CategoryProgress
	if err := db.Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		return nil, err
	}
	var mastered, missed int64
	if err := db.Model(&models.QuestionMastery{}).Where("user_id = ? AND mastered = ?", userID, true).Count(&mastered).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.MissedQuestion{}).Where("user_id = ?", userID).Count(&missed).Error; err != nil {
		return nil, err
	}

	out := &models.UserStats{
		UserID:        up.UserID,
		DisplayName:   displayName(up.DisplayName),
		GamesPlayed:   up.GamesPlayed,
		TotalScore:    up.TotalScore,
		Streak:        up.Streak,
		LastActiveAt:  up.LastActiveAt,
		Modes:         make(map[models.GameMode]models.ModeStat, len(modes)),
		Categories:    make(map[string]models.CategoryStat, len(cats)),
		MasteredCount: int(mastered),
		MissedCount:   int(missed),
	}
	for _, m := range modes {
		out.Modes[m.Mode] = models.ModeStat{Played: m.Played, TotalScore: m.TotalScore, TotalQuestions: m.TotalQuestions}
	}
	for _, c := range cats {
		out.Categories[c.Category] = models.CategoryStat{Correct: c.Correct, Total: c.Total}
	}
	return out, nil
}

// History returns the most recent games of userID, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.GameHistory, error) {
	histories := []models.GameHistory{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("finished_at DESC").
		Order("id DESC").
		Limit(HistoryLimit).
		Find(&histories).Error
	return histories, err
}

// Missed returns the missed-question ids of userID in the order they were
// first missed.
func (s *Service) Missed(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).
		Model(&models.MissedQuestion{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("question_id ASC").
		Pluck("question_id", &ids).Error
	return ids, err
}

func (s *Service) Mastered(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).
		Model(&models.QuestionMastery{}).
		Where("user_id = ? AND mastered = ?", userID, true).
		Order("question_id ASC").
		Pluck("question_id", &ids).Error
	return ids, err
}

// Leaderboard returns the top users by total score. limit <= 0 means the
// default; it is capped at MaxLeaderboardLimit.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	var rows []models.UserProgress
	err := s.db.WithContext(ctx).
		Order("total_score DESC").
		Order("user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.LeaderboardEntry{
			UserID:      r.UserID,
			DisplayName: displayName(r.DisplayName),
			GamesPlayed: r.GamesPlayed,
			TotalScore:  r.TotalScore,
			Streak:      r.Streak,
		})
	}
	return out, nil
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func displayName(name string) string {
	if name == "" {
		return anonymous
	}
	return name
}
