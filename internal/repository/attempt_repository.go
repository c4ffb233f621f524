package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// AttemptRepository persists exam attempts.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts a fresh attempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	if attempt.Answers == nil {
		attempt.Answers = models.AnswerMap{}
	}
	const query = `INSERT INTO attempts (id, student_id, exam_id, answers, score, tab_switch_count, started_at, submitted_at)
        VALUES (:id, :student_id, :exam_id, :answers, :score, :tab_switch_count, :started_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// FindByID returns the attempt row.
func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*models.Attempt, error) {
	const query = `SELECT id, student_id, exam_id, answers, score, tab_switch_count, started_at, submitted_at
        FROM attempts WHERE id = $1`
	var attempt models.Attempt
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindOpen returns the student's unsubmitted attempt for an exam, or nil.
func (r *AttemptRepository) FindOpen(ctx context.Context, studentID, examID string) (*models.Attempt, error) {
	const query = `SELECT id, student_id, exam_id, answers, score, tab_switch_count, started_at, submitted_at
        FROM attempts WHERE student_id = $1 AND exam_id = $2 AND submitted_at IS NULL`
	var attempt models.Attempt
	if err := r.db.GetContext(ctx, &attempt, query, studentID, examID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open attempt: %w", err)
	}
	return &attempt, nil
}

// SaveSubmission freezes the attempt's answers. Only unsubmitted attempts
// are affected; zero rows means the attempt was already submitted.
func (r *AttemptRepository) SaveSubmission(ctx context.Context, id string, answers models.AnswerMap, submittedAt time.Time) error {
	const query = `UPDATE attempts SET answers = $1, submitted_at = $2 WHERE id = $3 AND submitted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, answers, submittedAt, id)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetScore records the attempt's coarse percentage score.
func (r *AttemptRepository) SetScore(ctx context.Context, id string, score float64) error {
	const query = `UPDATE attempts SET score = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, score, id); err != nil {
		return fmt.Errorf("set attempt score: %w", err)
	}
	return nil
}

// IncrementTabSwitch bumps the integrity counter and returns the new count.
func (r *AttemptRepository) IncrementTabSwitch(ctx context.Context, id string) (int, error) {
	const query = `UPDATE attempts SET tab_switch_count = tab_switch_count + 1 WHERE id = $1 RETURNING tab_switch_count`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("increment tab switch: %w", err)
	}
	return count, nil
}
