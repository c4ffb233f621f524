package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type mockExamRepo struct {
	exams     map[string]*models.Exam
	questions map[string][]models.Question
	created   int
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.exams[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamRepo) List(ctx context.Context, programID string, term models.Term) ([]models.Exam, error) {
	var out []models.Exam
	for _, e := range m.exams {
		if programID != "" && e.ProgramID != programID {
			continue
		}
		if term != "" && e.Term != term {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if m.exams == nil {
		m.exams = make(map[string]*models.Exam)
	}
	m.created++
	exam.ID = "exam-created"
	copied := *exam
	m.exams[exam.ID] = &copied
	return nil
}

func (m *mockExamRepo) SetPublished(ctx context.Context, id string, published bool) error {
	if e, ok := m.exams[id]; ok {
		e.Published = published
	}
	return nil
}

func (m *mockExamRepo) ListQuestions(ctx context.Context, examID string) ([]models.Question, error) {
	return m.questions[examID], nil
}

func (m *mockExamRepo) ReplaceQuestions(ctx context.Context, examID string, questions []models.Question) error {
	if m.questions == nil {
		m.questions = make(map[string][]models.Question)
	}
	m.questions[examID] = questions
	return nil
}

type mockPayloadCache struct {
	payloads    map[string]*models.ExamPayload
	invalidated []string
	sets        int
}

func (m *mockPayloadCache) Get(ctx context.Context, examID string) (*models.ExamPayload, error) {
	return m.payloads[examID], nil
}

func (m *mockPayloadCache) Set(ctx context.Context, payload *models.ExamPayload, ttl time.Duration) error {
	if m.payloads == nil {
		m.payloads = make(map[string]*models.ExamPayload)
	}
	m.sets++
	m.payloads[payload.ExamID] = payload
	return nil
}

func (m *mockPayloadCache) Invalidate(ctx context.Context, examID string) error {
	m.invalidated = append(m.invalidated, examID)
	delete(m.payloads, examID)
	return nil
}

func examRepoFixture() *mockExamRepo {
	return &mockExamRepo{
		exams: map[string]*models.Exam{
			"exam1": {ID: "exam1", Title: "Midterm", Type: models.AssessmentExam, SubjectID: "math", ProgramID: "prog1", Term: models.TermFirst, DurationMinutes: 60},
		},
		questions: map[string][]models.Question{
			"exam1": {
				{ID: "q1", ExamID: "exam1", Text: "Pick two", Type: models.QuestionMCQ, MaxMarks: 5, OrderNum: 1, Options: []models.Option{
					{ID: "o1", Text: "First", IsCorrect: true, OrderNum: 1},
					{ID: "o2", Text: "Second", IsCorrect: true, OrderNum: 2},
					{ID: "o3", Text: "Third", OrderNum: 3},
				}},
			},
		},
	}
}

func newExamService(repo *mockExamRepo, cache *mockPayloadCache) *ExamService {
	return NewExamService(repo, cache, time.Hour, nil, validator.New(), zap.NewNop())
}

func TestCreateExamValidatesTerm(t *testing.T) {
	svc := newExamService(examRepoFixture(), &mockPayloadCache{})

	exam, err := svc.Create(context.Background(), CreateExamRequest{
		Title: "Final Exam", Type: "EXAM", SubjectID: "math", ProgramID: "prog1", Term: "THIRD", DurationMinutes: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TermThird, exam.Term)
	assert.False(t, exam.Published)

	_, err = svc.Create(context.Background(), CreateExamRequest{
		Title: "Final Exam", Type: "EXAM", SubjectID: "math", ProgramID: "prog1", Term: "SEMESTER", DurationMinutes: 90,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListExamsFiltersByProgramAndTerm(t *testing.T) {
	repo := examRepoFixture()
	repo.exams["exam2"] = &models.Exam{ID: "exam2", Title: "CA Quiz", Type: models.AssessmentCA, SubjectID: "math", ProgramID: "prog2", Term: models.TermSecond, DurationMinutes: 30}
	svc := newExamService(repo, &mockPayloadCache{})

	exams, err := svc.List(context.Background(), "prog1", "FIRST")
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "exam1", exams[0].ID)

	_, err = svc.List(context.Background(), "", "SEMESTER")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReplaceQuestionsRequiresCorrectOption(t *testing.T) {
	repo := examRepoFixture()
	svc := newExamService(repo, &mockPayloadCache{})

	_, err := svc.ReplaceQuestions(context.Background(), "exam1", ReplaceQuestionsRequest{
		Questions: []QuestionInput{
			{Text: "Pick one", Type: "MCQ", MaxMarks: 5, Options: []OptionInput{
				{Text: "A"}, {Text: "B"},
			}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReplaceQuestionsAssignsOrderAndInvalidatesCache(t *testing.T) {
	repo := examRepoFixture()
	cache := &mockPayloadCache{}
	svc := newExamService(repo, cache)

	questions, err := svc.ReplaceQuestions(context.Background(), "exam1", ReplaceQuestionsRequest{
		Questions: []QuestionInput{
			{Text: "Essay prompt", Type: "ESSAY", MaxMarks: 10},
			{Text: "True or false", Type: "TRUE_FALSE", MaxMarks: 2, Options: []OptionInput{
				{Text: "True", IsCorrect: true}, {Text: "False"},
			}},
		},
	})
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, 1, questions[0].OrderNum)
	assert.Equal(t, 2, questions[1].OrderNum)
	assert.Contains(t, cache.invalidated, "exam1")
}

func TestPublishWarmsPayloadCache(t *testing.T) {
	repo := examRepoFixture()
	cache := &mockPayloadCache{}
	svc := newExamService(repo, cache)

	require.NoError(t, svc.Publish(context.Background(), "exam1"))
	assert.True(t, repo.exams["exam1"].Published)
	require.NotNil(t, cache.payloads["exam1"])
}

func TestPayloadStripsCorrectAnswers(t *testing.T) {
	repo := examRepoFixture()
	repo.exams["exam1"].Published = true
	svc := newExamService(repo, &mockPayloadCache{})

	payload, err := svc.Payload(context.Background(), "exam1")
	require.NoError(t, err)
	require.Len(t, payload.Questions, 1)
	require.Len(t, payload.Questions[0].Options, 3)
	for _, option := range payload.Questions[0].Options {
		assert.NotEmpty(t, option.ID)
		assert.NotEmpty(t, option.Text)
	}
}

func TestPayloadRefusesUnpublishedExam(t *testing.T) {
	svc := newExamService(examRepoFixture(), &mockPayloadCache{})

	_, err := svc.Payload(context.Background(), "exam1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPayloadServedFromCache(t *testing.T) {
	repo := examRepoFixture()
	repo.exams["exam1"].Published = true
	cache := &mockPayloadCache{}
	svc := newExamService(repo, cache)

	first, err := svc.Payload(context.Background(), "exam1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Payload(context.Background(), "exam1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, first.ExamID, second.ExamID)
}
