package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// ExamRepository persists exams, their questions and answer options.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns the exam row.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, title, type, subject_id, program_id, term, duration_minutes, published, created_at, updated_at
        FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams, optionally narrowed to a program and term.
func (r *ExamRepository) List(ctx context.Context, programID string, term models.Term) ([]models.Exam, error) {
	query := `SELECT id, title, type, subject_id, program_id, term, duration_minutes, published, created_at, updated_at
        FROM exams WHERE 1=1`
	var args []interface{}
	if programID != "" {
		query += fmt.Sprintf(" AND program_id = $%d", len(args)+1)
		args = append(args, programID)
	}
	if term != "" {
		query += fmt.Sprintf(" AND term = $%d", len(args)+1)
		args = append(args, term)
	}
	query += " ORDER BY created_at DESC"
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, title, type, subject_id, program_id, term, duration_minutes, published, created_at, updated_at)
        VALUES (:id, :title, :type, :subject_id, :program_id, :term, :duration_minutes, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// SetPublished toggles exam availability for students.
func (r *ExamRepository) SetPublished(ctx context.Context, id string, published bool) error {
	const query = `UPDATE exams SET published = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, published, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("publish exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish exam: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("publish exam: no such exam %s", id)
	}
	return nil
}

// ListQuestions returns the exam's questions in order, options attached.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID string) ([]models.Question, error) {
	const questionQuery = `SELECT id, exam_id, text, type, max_marks, order_num
        FROM questions WHERE exam_id = $1 ORDER BY order_num`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, questionQuery, examID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return questions, nil
	}
	const optionQuery = `SELECT o.id, o.question_id, o.text, o.is_correct, o.order_num
        FROM options o
        JOIN questions q ON q.id = o.question_id
        WHERE q.exam_id = $1 ORDER BY o.order_num`
	var options []models.Option
	if err := r.db.SelectContext(ctx, &options, optionQuery, examID); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	byQuestion := make(map[string][]models.Option, len(questions))
	for _, option := range options {
		byQuestion[option.QuestionID] = append(byQuestion[option.QuestionID], option)
	}
	for i := range questions {
		questions[i].Options = byQuestion[questions[i].ID]
	}
	return questions, nil
}

// ReplaceQuestions swaps the exam's full question set atomically.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID string, questions []models.Question) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM options WHERE question_id IN (SELECT id FROM questions WHERE exam_id = $1)`, examID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear options: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear questions: %w", err)
	}
	const questionQuery = `INSERT INTO questions (id, exam_id, text, type, max_marks, order_num)
        VALUES (:id, :exam_id, :text, :type, :max_marks, :order_num)`
	const optionQuery = `INSERT INTO options (id, question_id, text, is_correct, order_num)
        VALUES (:id, :question_id, :text, :is_correct, :order_num)`
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
		questions[i].ExamID = examID
		if _, err := tx.NamedExecContext(ctx, questionQuery, questions[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert question: %w", err)
		}
		for j := range questions[i].Options {
			if questions[i].Options[j].ID == "" {
				questions[i].Options[j].ID = uuid.NewString()
			}
			questions[i].Options[j].QuestionID = questions[i].ID
			if _, err := tx.NamedExecContext(ctx, optionQuery, questions[i].Options[j]); err != nil {
				tx.Rollback() //nolint:errcheck
				return fmt.Errorf("insert option: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE exams SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), examID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("touch exam: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit questions: %w", err)
	}
	return nil
}
