package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// ErrVersionMismatch signals that a versioned write lost a race with a
// concurrent writer on the same row.
var ErrVersionMismatch = errors.New("subject grade version mismatch")

// SubjectGradeRepository persists the authoritative per-subject scores.
type SubjectGradeRepository struct {
	db *sqlx.DB
}

// NewSubjectGradeRepository creates a new subject grade repository.
func NewSubjectGradeRepository(db *sqlx.DB) *SubjectGradeRepository {
	return &SubjectGradeRepository{db: db}
}

// Get returns the subject grade row for the logical key.
func (r *SubjectGradeRepository) Get(ctx context.Context, key models.SubjectGradeKey) (*models.SubjectGrade, error) {
	const query = `SELECT sg.id, sg.student_id, sg.subject_id, sg.program_id, sg.term,
        sg.continuous_assessment, sg.examination, sg.total_score, sg.grade, sg.teacher_comment,
        sg.version, sg.created_at, sg.updated_at, s.name AS subject_name
        FROM subject_grades sg
        JOIN subjects s ON s.id = sg.subject_id
        WHERE sg.student_id = $1 AND sg.subject_id = $2 AND sg.program_id = $3 AND sg.term = $4`
	var grade models.SubjectGrade
	if err := r.db.GetContext(ctx, &grade, query, key.StudentID, key.SubjectID, key.ProgramID, key.Term); err != nil {
		return nil, err
	}
	return &grade, nil
}

// List returns subject grades matching the filter, restricted to subjects
// actually offered by the grade's program.
func (r *SubjectGradeRepository) List(ctx context.Context, filter models.SubjectGradeFilter) ([]models.SubjectGrade, error) {
	query := `SELECT sg.id, sg.student_id, sg.subject_id, sg.program_id, sg.term,
        sg.continuous_assessment, sg.examination, sg.total_score, sg.grade, sg.teacher_comment,
        sg.version, sg.created_at, sg.updated_at, s.name AS subject_name
        FROM subject_grades sg
        JOIN subjects s ON s.id = sg.subject_id
        JOIN program_subjects ps ON ps.program_id = sg.program_id AND ps.subject_id = sg.subject_id
        WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND sg.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND sg.subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.ProgramID != "" {
		query += fmt.Sprintf(" AND sg.program_id = $%d", len(args)+1)
		args = append(args, filter.ProgramID)
	}
	if filter.Term != "" {
		query += fmt.Sprintf(" AND sg.term = $%d", len(args)+1)
		args = append(args, filter.Term)
	}
	query += " ORDER BY ps.order_num, s.name"
	var grades []models.SubjectGrade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list subject grades: %w", err)
	}
	return grades, nil
}

// UpsertVersioned writes the grade using optimistic concurrency. A zero
// expected version inserts; anything else updates only when the stored
// version still matches. ErrVersionMismatch means the caller must re-read
// and recompute.
func (r *SubjectGradeRepository) UpsertVersioned(ctx context.Context, grade *models.SubjectGrade, expectedVersion int) error {
	now := time.Now().UTC()
	grade.UpdatedAt = now
	if expectedVersion == 0 {
		if grade.ID == "" {
			grade.ID = uuid.NewString()
		}
		grade.CreatedAt = now
		grade.Version = 1
		const query = `INSERT INTO subject_grades (id, student_id, subject_id, program_id, term,
            continuous_assessment, examination, total_score, grade, teacher_comment, version, created_at, updated_at)
            VALUES (:id, :student_id, :subject_id, :program_id, :term,
            :continuous_assessment, :examination, :total_score, :grade, :teacher_comment, :version, :created_at, :updated_at)
            ON CONFLICT (student_id, subject_id, program_id, term) DO NOTHING`
		result, err := r.db.NamedExecContext(ctx, query, grade)
		if err != nil {
			return fmt.Errorf("insert subject grade: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert subject grade: %w", err)
		}
		if affected == 0 {
			return ErrVersionMismatch
		}
		return nil
	}

	grade.Version = expectedVersion + 1
	const query = `UPDATE subject_grades SET continuous_assessment = $1, examination = $2,
        total_score = $3, grade = $4, teacher_comment = $5, version = $6, updated_at = $7
        WHERE student_id = $8 AND subject_id = $9 AND program_id = $10 AND term = $11 AND version = $12`
	result, err := r.db.ExecContext(ctx, query,
		grade.ContinuousAssessment, grade.Examination, grade.TotalScore, grade.Grade, grade.TeacherComment,
		grade.Version, grade.UpdatedAt,
		grade.StudentID, grade.SubjectID, grade.ProgramID, grade.Term, expectedVersion)
	if err != nil {
		return fmt.Errorf("update subject grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject grade: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	return nil
}

// FetchByProgramTerm returns all grades for a program+term keyed by
// student, feeding the ranking computation.
func (r *SubjectGradeRepository) FetchByProgramTerm(ctx context.Context, programID string, term models.Term) (map[string][]models.SubjectGrade, error) {
	const query = `SELECT sg.id, sg.student_id, sg.subject_id, sg.program_id, sg.term,
        sg.continuous_assessment, sg.examination, sg.total_score, sg.grade, sg.teacher_comment,
        sg.version, sg.created_at, sg.updated_at, s.name AS subject_name
        FROM subject_grades sg
        JOIN subjects s ON s.id = sg.subject_id
        WHERE sg.program_id = $1 AND sg.term = $2`
	rows, err := r.db.QueryxContext(ctx, query, programID, term)
	if err != nil {
		return nil, fmt.Errorf("fetch program grades: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.SubjectGrade)
	for rows.Next() {
		var grade models.SubjectGrade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan subject grade: %w", err)
		}
		result[grade.StudentID] = append(result[grade.StudentID], grade)
	}
	return result, nil
}
