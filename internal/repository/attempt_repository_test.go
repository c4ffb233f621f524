package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

func TestAttemptRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttemptRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attempts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	attempt := &models.Attempt{StudentID: "stu-1", ExamID: "exam-1"}
	require.NoError(t, repo.Create(context.Background(), attempt))
	require.NotEmpty(t, attempt.ID)
	require.False(t, attempt.StartedAt.IsZero())
	require.NotNil(t, attempt.Answers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryFindOpenReturnsNilWhenNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttemptRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("submitted_at IS NULL")).
		WithArgs("stu-1", "exam-1").
		WillReturnError(sql.ErrNoRows)

	attempt, err := repo.FindOpen(context.Background(), "stu-1", "exam-1")
	require.NoError(t, err)
	require.Nil(t, attempt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositorySaveSubmissionOnlyOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttemptRepository(db)
	answers := models.AnswerMap{"q1": "o1"}
	submittedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attempts SET answers")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveSubmission(context.Background(), "att-1", answers, submittedAt))

	// second submission finds no unsubmitted row
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attempts SET answers")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SaveSubmission(context.Background(), "att-1", answers, submittedAt)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryIncrementTabSwitch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttemptRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("tab_switch_count + 1")).
		WithArgs("att-1").
		WillReturnRows(sqlmock.NewRows([]string{"tab_switch_count"}).AddRow(3))

	count, err := repo.IncrementTabSwitch(context.Background(), "att-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
