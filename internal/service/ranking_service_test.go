package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

type mockProgramGrades struct {
	byStudent map[string][]models.SubjectGrade
}

func (m *mockProgramGrades) FetchByProgramTerm(ctx context.Context, programID string, term models.Term) (map[string][]models.SubjectGrade, error) {
	return m.byStudent, nil
}

type mockRoster struct {
	students []models.Student
}

func (m *mockRoster) EnrolledStudents(ctx context.Context, programID string) ([]models.Student, error) {
	return m.students, nil
}

func gradedSubject(subjectID string, total float64) models.SubjectGrade {
	return models.SubjectGrade{SubjectID: subjectID, TotalScore: &total}
}

func TestRankClassCompetitionTies(t *testing.T) {
	roster := &mockRoster{students: []models.Student{
		{ID: "s1", FullName: "Ada"},
		{ID: "s2", FullName: "Ben"},
		{ID: "s3", FullName: "Cara"},
		{ID: "s4", FullName: "Dan"},
	}}
	grades := &mockProgramGrades{byStudent: map[string][]models.SubjectGrade{
		"s1": {gradedSubject("math", 90)},
		"s2": {gradedSubject("math", 85)},
		"s3": {gradedSubject("math", 85)},
		"s4": {gradedSubject("math", 70)},
	}}
	svc := NewRankingService(grades, roster, nil, zap.NewNop())

	ranking, err := svc.RankClass(context.Background(), "prog1", models.TermFirst)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 4)

	assert.Equal(t, 1, ranking.Entries[0].Position)
	assert.Equal(t, 2, ranking.Entries[1].Position)
	assert.Equal(t, 2, ranking.Entries[2].Position)
	// next distinct average skips the tied slot
	assert.Equal(t, 4, ranking.Entries[3].Position)

	// tied students ordered by name
	assert.Equal(t, "Ben", ranking.Entries[1].StudentName)
	assert.Equal(t, "Cara", ranking.Entries[2].StudentName)
}

func TestRankClassExcludesUngradedStudents(t *testing.T) {
	roster := &mockRoster{students: []models.Student{
		{ID: "s1", FullName: "Ada"},
		{ID: "s2", FullName: "Ben"},
		{ID: "s3", FullName: "Cara"},
	}}
	pending := models.SubjectGrade{SubjectID: "math"}
	grades := &mockProgramGrades{byStudent: map[string][]models.SubjectGrade{
		"s1": {gradedSubject("math", 80)},
		"s2": {pending},
	}}
	svc := NewRankingService(grades, roster, nil, zap.NewNop())

	ranking, err := svc.RankClass(context.Background(), "prog1", models.TermFirst)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, "s1", ranking.Entries[0].StudentID)
	// class size counts only ranked students
	assert.Equal(t, 1, ranking.TotalStudents)
}

func TestRankClassAveragesSkipPendingSubjects(t *testing.T) {
	roster := &mockRoster{students: []models.Student{{ID: "s1", FullName: "Ada"}}}
	grades := &mockProgramGrades{byStudent: map[string][]models.SubjectGrade{
		"s1": {gradedSubject("math", 80), gradedSubject("eng", 60), {SubjectID: "bio"}},
	}}
	svc := NewRankingService(grades, roster, nil, zap.NewNop())

	ranking, err := svc.RankClass(context.Background(), "prog1", models.TermFirst)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, 70.0, ranking.Entries[0].AverageScore)
}

func TestRankClassTieBreakIsDeterministic(t *testing.T) {
	roster := &mockRoster{students: []models.Student{
		{ID: "s2", FullName: "Ada"},
		{ID: "s1", FullName: "Ada"},
	}}
	grades := &mockProgramGrades{byStudent: map[string][]models.SubjectGrade{
		"s1": {gradedSubject("math", 75)},
		"s2": {gradedSubject("math", 75)},
	}}
	svc := NewRankingService(grades, roster, nil, zap.NewNop())

	ranking, err := svc.RankClass(context.Background(), "prog1", models.TermFirst)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 2)
	assert.Equal(t, "s1", ranking.Entries[0].StudentID)
	assert.Equal(t, "s2", ranking.Entries[1].StudentID)
	assert.Equal(t, 1, ranking.Entries[0].Position)
	assert.Equal(t, 1, ranking.Entries[1].Position)
}

func TestRankClassRejectsUnknownTerm(t *testing.T) {
	svc := NewRankingService(&mockProgramGrades{}, &mockRoster{}, nil, zap.NewNop())
	_, err := svc.RankClass(context.Background(), "prog1", models.Term("SUMMER"))
	assert.Error(t, err)
}
