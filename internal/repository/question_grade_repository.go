package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// QuestionGradeRepository persists per-question marks.
type QuestionGradeRepository struct {
	db *sqlx.DB
}

// NewQuestionGradeRepository creates a new question grade repository.
func NewQuestionGradeRepository(db *sqlx.DB) *QuestionGradeRepository {
	return &QuestionGradeRepository{db: db}
}

// Upsert inserts or updates the grade for (attempt, question). Teachers
// re-save question by question; the conflict target keeps that idempotent.
func (r *QuestionGradeRepository) Upsert(ctx context.Context, grade *models.QuestionGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO question_grades (id, attempt_id, question_id, marks_awarded, teacher_comment, teacher_override, created_at, updated_at)
        VALUES (:id, :attempt_id, :question_id, :marks_awarded, :teacher_comment, :teacher_override, :created_at, :updated_at)
        ON CONFLICT (attempt_id, question_id)
        DO UPDATE SET marks_awarded = EXCLUDED.marks_awarded, teacher_comment = EXCLUDED.teacher_comment,
        teacher_override = EXCLUDED.teacher_override, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert question grade: %w", err)
	}
	return nil
}

// UpsertProvisional writes an auto-derived grade without disturbing rows a
// teacher already touched. Returns false when the row was left alone
// because of an existing override.
func (r *QuestionGradeRepository) UpsertProvisional(ctx context.Context, grade *models.QuestionGrade) (bool, error) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	grade.TeacherOverride = false
	const query = `INSERT INTO question_grades (id, attempt_id, question_id, marks_awarded, teacher_comment, teacher_override, created_at, updated_at)
        VALUES (:id, :attempt_id, :question_id, :marks_awarded, :teacher_comment, :teacher_override, :created_at, :updated_at)
        ON CONFLICT (attempt_id, question_id)
        DO UPDATE SET marks_awarded = EXCLUDED.marks_awarded, updated_at = EXCLUDED.updated_at
        WHERE question_grades.teacher_override = FALSE`
	result, err := r.db.NamedExecContext(ctx, query, grade)
	if err != nil {
		return false, fmt.Errorf("upsert provisional grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert provisional grade: %w", err)
	}
	return affected > 0, nil
}

// ListByAttempt returns all question grades recorded for an attempt.
func (r *QuestionGradeRepository) ListByAttempt(ctx context.Context, attemptID string) ([]models.QuestionGrade, error) {
	const query = `SELECT id, attempt_id, question_id, marks_awarded, teacher_comment, teacher_override, created_at, updated_at
        FROM question_grades WHERE attempt_id = $1 ORDER BY created_at`
	var grades []models.QuestionGrade
	if err := r.db.SelectContext(ctx, &grades, query, attemptID); err != nil {
		return nil, fmt.Errorf("list question grades: %w", err)
	}
	return grades, nil
}
