package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func subjectGradeColumns() []string {
	return []string{"id", "student_id", "subject_id", "program_id", "term",
		"continuous_assessment", "examination", "total_score", "grade", "teacher_comment",
		"version", "created_at", "updated_at", "subject_name"}
}

func TestSubjectGradeRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	ca := 32.0
	rows := sqlmock.NewRows(subjectGradeColumns()).
		AddRow("sg-1", "stu-1", "sub-1", "prog-1", "FIRST", ca, nil, nil, nil, nil, 1, time.Now(), time.Now(), "Mathematics")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sg.id, sg.student_id")).
		WithArgs("stu-1", "sub-1", "prog-1", models.TermFirst).
		WillReturnRows(rows)

	grade, err := repo.Get(context.Background(), models.SubjectGradeKey{
		StudentID: "stu-1", SubjectID: "sub-1", ProgramID: "prog-1", Term: models.TermFirst,
	})
	require.NoError(t, err)
	require.Equal(t, "sg-1", grade.ID)
	require.NotNil(t, grade.ContinuousAssessment)
	require.Equal(t, 32.0, *grade.ContinuousAssessment)
	require.Nil(t, grade.Examination)
	require.Nil(t, grade.TotalScore)
	require.Equal(t, "Mathematics", grade.SubjectName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGradeRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	rows := sqlmock.NewRows(subjectGradeColumns()).
		AddRow("sg-1", "stu-1", "sub-1", "prog-1", "FIRST", 32.0, 48.0, 80.0, "A", nil, 2, time.Now(), time.Now(), "Mathematics")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN program_subjects ps")).
		WithArgs("stu-1", "prog-1", models.TermFirst).
		WillReturnRows(rows)

	grades, err := repo.List(context.Background(), models.SubjectGradeFilter{
		StudentID: "stu-1", ProgramID: "prog-1", Term: models.TermFirst,
	})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	require.Equal(t, "A", *grades[0].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGradeRepositoryInsertOnZeroVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grades")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ca := 30.0
	grade := &models.SubjectGrade{
		StudentID: "stu-1", SubjectID: "sub-1", ProgramID: "prog-1", Term: models.TermFirst,
		ContinuousAssessment: &ca,
	}
	require.NoError(t, repo.UpsertVersioned(context.Background(), grade, 0))
	require.NotEmpty(t, grade.ID)
	require.Equal(t, 1, grade.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGradeRepositoryInsertLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	// conflicting concurrent insert: ON CONFLICT DO NOTHING affects zero rows
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grades")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	grade := &models.SubjectGrade{
		StudentID: "stu-1", SubjectID: "sub-1", ProgramID: "prog-1", Term: models.TermFirst,
	}
	err := repo.UpsertVersioned(context.Background(), grade, 0)
	require.ErrorIs(t, err, ErrVersionMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGradeRepositoryUpdateChecksVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subject_grades SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ca, exam := 30.0, 50.0
	grade := &models.SubjectGrade{
		StudentID: "stu-1", SubjectID: "sub-1", ProgramID: "prog-1", Term: models.TermFirst,
		ContinuousAssessment: &ca, Examination: &exam,
	}
	require.NoError(t, repo.UpsertVersioned(context.Background(), grade, 3))
	require.Equal(t, 4, grade.Version)

	// stale version touches no rows
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subject_grades SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpsertVersioned(context.Background(), grade, 3)
	require.ErrorIs(t, err, ErrVersionMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectGradeRepositoryFetchByProgramTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectGradeRepository(db)
	rows := sqlmock.NewRows(subjectGradeColumns()).
		AddRow("sg-1", "stu-1", "sub-1", "prog-1", "FIRST", 32.0, 48.0, 80.0, "A", nil, 2, time.Now(), time.Now(), "Mathematics").
		AddRow("sg-2", "stu-1", "sub-2", "prog-1", "FIRST", nil, nil, nil, nil, nil, 1, time.Now(), time.Now(), "English").
		AddRow("sg-3", "stu-2", "sub-1", "prog-1", "FIRST", 20.0, 40.0, 60.0, "B", nil, 1, time.Now(), time.Now(), "Mathematics")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sg.program_id = $1 AND sg.term = $2")).
		WithArgs("prog-1", models.TermFirst).
		WillReturnRows(rows)

	byStudent, err := repo.FetchByProgramTerm(context.Background(), "prog-1", models.TermFirst)
	require.NoError(t, err)
	require.Len(t, byStudent, 2)
	require.Len(t, byStudent["stu-1"], 2)
	require.Nil(t, byStudent["stu-1"][1].TotalScore)
	require.NoError(t, mock.ExpectationsWereMet())
}
