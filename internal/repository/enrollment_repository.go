package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// EnrollmentRepository reads program rosters and homeroom term records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// EnrolledStudents returns the active roster of a program.
func (r *EnrollmentRepository) EnrolledStudents(ctx context.Context, programID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.full_name, s.email, s.active, s.created_at, s.updated_at
        FROM students s
        JOIN enrollments e ON e.student_id = s.id
        WHERE e.program_id = $1 AND e.active = TRUE
        ORDER BY s.full_name, s.id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, programID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return students, nil
}

// IsEnrolled reports whether the student holds an active enrollment in the
// program.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, programID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND program_id = $2 AND active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, programID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// TermRecord returns attendance/conduct data for the student's term, or
// nil when none was recorded.
func (r *EnrollmentRepository) TermRecord(ctx context.Context, studentID, programID string, term models.Term) (*models.TermRecord, error) {
	const query = `SELECT id, student_id, program_id, term, attendance_rate, conduct_grade, remarks
        FROM term_records WHERE student_id = $1 AND program_id = $2 AND term = $3`
	var record models.TermRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, programID, term); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch term record: %w", err)
	}
	return &record, nil
}
