package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

// MatchResult is the durable record of a finished match. The live document is gone once the
// custodian deletes it, this row is what is left.
type MatchResult struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	Code       string `gorm:"index;not null"`
	Mode       string `gorm:"not null"`
	Difficulty string
	Status     string `gorm:"not null"`
	Winner     string
	Loser      string
	P1Pseudo   string `gorm:"not null"`
	P1PV       int
	P2Pseudo   string
	P2PV       int
	Turns      int
	History    string
	StartedAt  time.Time
	EndedAt    time.Time
	CreatedAt  time.Time
}

// FromMatch maps a terminal match to its archive row.
func FromMatch(m *entity.Match) MatchResult {
	result := MatchResult{
		ID:         uuid.NewString(),
		Code:       m.Code,
		Mode:       string(m.Mode),
		Difficulty: string(m.Difficulty),
		Status:     string(m.Status),
		Winner:     string(m.Winner),
		Loser:      string(m.Loser),
		Turns:      m.TurnNumber - 1,
		History:    strings.Join(m.History, "\n"),
		StartedAt:  time.UnixMilli(m.CreatedAt).UTC(),
		EndedAt:    time.UnixMilli(m.EndedAt).UTC(),
	}

	if p1 := m.Player(entity.SlotP1); p1 != nil {
		result.P1Pseudo = p1.Pseudo
		result.P1PV = p1.PV
	}

	if p2 := m.Player(entity.SlotP2); p2 != nil {
		result.P2Pseudo = p2.Pseudo
		result.P2PV = p2.PV
	}

	return result
}

// Open connects to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	return db, nil
}

type Recorder struct {
	db *gorm.DB
}

// NewRecorder migrates the results table and returns a recorder writing to it.
func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&MatchResult{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	return &Recorder{db: db}, nil
}

func (that *Recorder) Record(ctx context.Context, match *entity.Match) error {
	result := FromMatch(match)

	if err := that.db.WithContext(ctx).Create(&result).Error; err != nil {
		return fmt.Errorf("failed to record match %s: %w", match.Code, err)
	}

	return nil
}

// ListByCode returns the archived results for code, newest first.
func (that *Recorder) ListByCode(ctx context.Context, code string) ([]MatchResult, error) {
	var results []MatchResult

	err := that.db.WithContext(ctx).
		Where("code = ?", code).
		Order("ended_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results of %s: %w", code, err)
	}

	return results, nil
}

// Close releases the connection pool.
func (that *Recorder) Close() error {
	sqlDB, err := that.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
