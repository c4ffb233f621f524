package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/repository"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type mockSubjectGradeRepo struct {
	grades map[models.SubjectGradeKey]*models.SubjectGrade

	// conflictsLeft forces UpsertVersioned to fail with a version mismatch
	// this many times before succeeding.
	conflictsLeft int
	upsertCalls   int
}

func (m *mockSubjectGradeRepo) key(g *models.SubjectGrade) models.SubjectGradeKey {
	return models.SubjectGradeKey{StudentID: g.StudentID, SubjectID: g.SubjectID, ProgramID: g.ProgramID, Term: g.Term}
}

func (m *mockSubjectGradeRepo) Get(ctx context.Context, key models.SubjectGradeKey) (*models.SubjectGrade, error) {
	if g, ok := m.grades[key]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectGradeRepo) List(ctx context.Context, filter models.SubjectGradeFilter) ([]models.SubjectGrade, error) {
	var result []models.SubjectGrade
	for _, g := range m.grades {
		if filter.StudentID != "" && filter.StudentID != g.StudentID {
			continue
		}
		if filter.ProgramID != "" && filter.ProgramID != g.ProgramID {
			continue
		}
		if filter.Term != "" && filter.Term != g.Term {
			continue
		}
		result = append(result, *g)
	}
	return result, nil
}

func (m *mockSubjectGradeRepo) UpsertVersioned(ctx context.Context, grade *models.SubjectGrade, expectedVersion int) error {
	m.upsertCalls++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return repository.ErrVersionMismatch
	}
	if m.grades == nil {
		m.grades = make(map[models.SubjectGradeKey]*models.SubjectGrade)
	}
	grade.Version = expectedVersion + 1
	copied := *grade
	m.grades[m.key(grade)] = &copied
	return nil
}

type mockEnrollmentChecker struct {
	enrolled map[string]bool
}

func (m *mockEnrollmentChecker) IsEnrolled(ctx context.Context, studentID, programID string) (bool, error) {
	return m.enrolled[studentID+programID], nil
}

func newSubjectGradeService(repo *mockSubjectGradeRepo, enrollments *mockEnrollmentChecker, retries int) *SubjectGradeService {
	return NewSubjectGradeService(repo, enrollments, models.DefaultWeightPolicy(), models.DefaultGradeScale(), retries, nil, validator.New(), zap.NewNop())
}

func TestSetComponentLeavesTotalPending(t *testing.T) {
	repo := &mockSubjectGradeRepo{}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	grade, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 32,
	})
	require.NoError(t, err)
	require.NotNil(t, grade.ContinuousAssessment)
	assert.Equal(t, 32.0, *grade.ContinuousAssessment)
	assert.Nil(t, grade.Examination)
	assert.Nil(t, grade.TotalScore)
	assert.Nil(t, grade.Grade)
}

func TestSetComponentCombinesWhenBothPresent(t *testing.T) {
	repo := &mockSubjectGradeRepo{}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	_, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 32,
	})
	require.NoError(t, err)

	grade, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentExam, Value: 48,
	})
	require.NoError(t, err)
	require.NotNil(t, grade.TotalScore)
	assert.Equal(t, 80.0, *grade.TotalScore)
	require.NotNil(t, grade.Grade)
	assert.Equal(t, "A", *grade.Grade)
	assert.Equal(t, 2, grade.Version)
}

func TestSetComponentRejectsOutOfRange(t *testing.T) {
	repo := &mockSubjectGradeRepo{}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	_, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 41,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetComponentRequiresEnrollment(t *testing.T) {
	repo := &mockSubjectGradeRepo{}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	_, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "ghost", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetComponentRetriesOnVersionConflict(t *testing.T) {
	repo := &mockSubjectGradeRepo{conflictsLeft: 2}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	grade, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.upsertCalls)
	require.NotNil(t, grade.ContinuousAssessment)
	assert.Equal(t, 20.0, *grade.ContinuousAssessment)
}

func TestSetComponentSurfacesConflictAfterRetries(t *testing.T) {
	repo := &mockSubjectGradeRepo{conflictsLeft: 10}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 2)

	_, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FIRST",
		Component: models.ComponentCA, Value: 20,
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsVersionConflict(err))
	assert.Equal(t, 3, repo.upsertCalls)
}

func TestSetComponentRejectsUnknownTerm(t *testing.T) {
	repo := &mockSubjectGradeRepo{}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"stu1prog1": true}}
	svc := newSubjectGradeService(repo, enrollments, 3)

	_, err := svc.SetComponent(context.Background(), SetComponentRequest{
		StudentID: "stu1", SubjectID: "math", ProgramID: "prog1", Term: "FOURTH",
		Component: models.ComponentCA, Value: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
