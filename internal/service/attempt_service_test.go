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

type mockAttemptRepo struct {
	attempts map[string]*models.Attempt
	nextID   int
}

func (m *mockAttemptRepo) Create(ctx context.Context, attempt *models.Attempt) error {
	if m.attempts == nil {
		m.attempts = make(map[string]*models.Attempt)
	}
	m.nextID++
	attempt.ID = string(rune('a' + m.nextID - 1))
	copied := *attempt
	m.attempts[attempt.ID] = &copied
	return nil
}

func (m *mockAttemptRepo) FindByID(ctx context.Context, id string) (*models.Attempt, error) {
	if a, ok := m.attempts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttemptRepo) FindOpen(ctx context.Context, studentID, examID string) (*models.Attempt, error) {
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.ExamID == examID && !a.Submitted() {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAttemptRepo) SaveSubmission(ctx context.Context, id string, answers models.AnswerMap, submittedAt time.Time) error {
	attempt, ok := m.attempts[id]
	if !ok || attempt.Submitted() {
		return sql.ErrNoRows
	}
	attempt.Answers = answers
	attempt.SubmittedAt = &submittedAt
	return nil
}

func (m *mockAttemptRepo) SetScore(ctx context.Context, id string, score float64) error {
	if attempt, ok := m.attempts[id]; ok {
		attempt.Score = &score
	}
	return nil
}

func (m *mockAttemptRepo) IncrementTabSwitch(ctx context.Context, id string) (int, error) {
	attempt, ok := m.attempts[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	attempt.TabSwitchCount++
	return attempt.TabSwitchCount, nil
}

func publishedExamFixture() *mockExamReader {
	exams := mcqFixture()
	// drop the essay so every question is auto-scorable
	exams.questions["exam1"] = exams.questions["exam1"][:2]
	return exams
}

func newAttemptService(repo *mockAttemptRepo, exams *mockExamReader) *AttemptService {
	return NewAttemptService(repo, exams, validator.New(), zap.NewNop())
}

func TestStartAttemptResumesOpenAttempt(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, publishedExamFixture())

	first, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.attempts, 1)
}

func TestStartAttemptRequiresPublishedExam(t *testing.T) {
	exams := publishedExamFixture()
	exams.exams["exam1"].Published = false
	svc := newAttemptService(&mockAttemptRepo{}, exams)

	_, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSubmitAttemptFreezesAnswers(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, publishedExamFixture())

	attempt, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{
		Answers: models.AnswerMap{"q1": "o1,o2", "q2": "t2"},
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.SubmittedAt)

	_, err = svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{
		Answers: models.AnswerMap{"q1": "o3"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAttemptSubmitted.Code, appErrors.FromError(err).Code)
	// frozen answers survive the second submit
	assert.Equal(t, "o1,o2", repo.attempts[attempt.ID].Answers["q1"])
}

func TestSubmitComputesCoarseScoreWhenFullyAutoScorable(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, publishedExamFixture())

	attempt, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)

	// q1 (5 marks) correct, q2 (2 marks) wrong: 5/7
	submitted, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{
		Answers: models.AnswerMap{"q1": "o2,o1", "q2": "t2"},
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.Score)
	assert.InDelta(t, 71.43, *submitted.Score, 0.001)
}

func TestSubmitSkipsCoarseScoreForMixedExams(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, mcqFixture())

	attempt, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{
		Answers: models.AnswerMap{"q1": "o1,o2", "q3": "long essay text"},
	})
	require.NoError(t, err)
	assert.Nil(t, submitted.Score)
}

func TestRecordTabSwitch(t *testing.T) {
	repo := &mockAttemptRepo{}
	svc := newAttemptService(repo, publishedExamFixture())

	attempt, err := svc.Start(context.Background(), StartAttemptRequest{StudentID: "stu1", ExamID: "exam1"})
	require.NoError(t, err)

	count, err := svc.RecordTabSwitch(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.RecordTabSwitch(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// submitted attempts keep their counter frozen
	_, err = svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{Answers: models.AnswerMap{"q1": "o3"}})
	require.NoError(t, err)
	count, err = svc.RecordTabSwitch(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
