package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

func TestEnrollmentRepositoryEnrolledStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "active", "created_at", "updated_at"}).
		AddRow("stu-1", "Ada", "ada@school.test", true, time.Now(), time.Now()).
		AddRow("stu-2", "Ben", "ben@school.test", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN enrollments e ON e.student_id = s.id")).
		WithArgs("prog-1").
		WillReturnRows(rows)

	students, err := repo.EnrolledStudents(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "Ada", students[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("stu-1", "prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	enrolled, err := repo.IsEnrolled(context.Background(), "stu-1", "prog-1")
	require.NoError(t, err)
	require.True(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTermRecordMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM term_records")).
		WithArgs("stu-1", "prog-1", models.TermFirst).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "program_id", "term", "attendance_rate", "conduct_grade", "remarks"}))

	record, err := repo.TermRecord(context.Background(), "stu-1", "prog-1", models.TermFirst)
	require.NoError(t, err)
	require.Nil(t, record)
	require.NoError(t, mock.ExpectationsWereMet())
}
