package postgres

import (
	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	tests     repositories.TestRepository
	questions repositories.QuestionRepository
	attempts  repositories.AttemptRepository
	grades    repositories.GradeRepository
}

// NewRepository wires the gorm-backed repositories over one shared connection.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		tests:     NewTestPostgreSQL(db),
		questions: NewQuestionPostgreSQL(db),
		attempts:  NewAttemptPostgreSQL(db),
		grades:    NewGradePostgreSQL(db),
	}
}

func (r *repository) Test() repositories.TestRepository         { return r.tests }
func (r *repository) Question() repositories.QuestionRepository { return r.questions }
func (r *repository) Attempt() repositories.AttemptRepository   { return r.attempts }
func (r *repository) Grade() repositories.GradeRepository       { return r.grades }

// AutoMigrate creates or updates the engine's tables, including the partial
// unique index backing the one-active-attempt invariant.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Test{},
		&models.Question{},
		&models.Attempt{},
		&models.GradeSummary{},
	); err != nil {
		return err
	}

	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_attempt
		 ON attempts (test_id, student_id)
		 WHERE status = 'in_progress'`,
	).Error
}
