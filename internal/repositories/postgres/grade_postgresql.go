package postgres

import (
	"context"
	"errors"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GradePostgreSQL struct {
	db *gorm.DB
}

func NewGradePostgreSQL(db *gorm.DB) repositories.GradeRepository {
	return &GradePostgreSQL{db: db}
}

// Upsert keys on attempt_id so re-marking an attempt overwrites its summary
// instead of duplicating it.
func (g *GradePostgreSQL) Upsert(ctx context.Context, summary *models.GradeSummary) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}},
			UpdateAll: true,
		}).
		Create(summary).Error
}

func (g *GradePostgreSQL) GetByAttempt(ctx context.Context, attemptID string) (*models.GradeSummary, error) {
	var summary models.GradeSummary
	if err := g.db.WithContext(ctx).First(&summary, "attempt_id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}
