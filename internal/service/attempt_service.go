package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type attemptStore interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	FindByID(ctx context.Context, id string) (*models.Attempt, error)
	FindOpen(ctx context.Context, studentID, examID string) (*models.Attempt, error)
	SaveSubmission(ctx context.Context, id string, answers models.AnswerMap, submittedAt time.Time) error
	SetScore(ctx context.Context, id string, score float64) error
	IncrementTabSwitch(ctx context.Context, id string) (int, error)
}

// StartAttemptRequest opens an exam sitting for a student.
type StartAttemptRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ExamID    string `json:"exam_id" validate:"required"`
}

// SubmitAttemptRequest freezes a student's answers.
type SubmitAttemptRequest struct {
	Answers models.AnswerMap `json:"answers" validate:"required"`
}

// AttemptService manages the exam attempt lifecycle: start, submit,
// integrity signals. At most one open attempt per student and exam.
type AttemptService struct {
	attempts  attemptStore
	exams     examReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttemptService constructs AttemptService.
func NewAttemptService(attempts attemptStore, exams examReader, validate *validator.Validate, logger *zap.Logger) *AttemptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptService{attempts: attempts, exams: exams, validator: validate, logger: logger}
}

// Start opens an attempt. Starting twice resumes the open attempt instead
// of creating a duplicate, which keeps page reloads harmless.
func (s *AttemptService) Start(ctx context.Context, req StartAttemptRequest) (*models.Attempt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}
	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !exam.Published {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exam not published")
	}
	open, err := s.attempts.FindOpen(ctx, req.StudentID, req.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open attempts")
	}
	if open != nil {
		return open, nil
	}
	attempt := &models.Attempt{
		StudentID: req.StudentID,
		ExamID:    req.ExamID,
		Answers:   models.AnswerMap{},
		StartedAt: time.Now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attempt")
	}
	s.logger.Info("attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("exam_id", req.ExamID),
		zap.String("student_id", req.StudentID))
	return attempt, nil
}

// Submit freezes the answers. A second submit conflicts rather than
// silently replacing the frozen set.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, req SubmitAttemptRequest) (*models.Attempt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	attempt, err := s.findAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Submitted() {
		return nil, appErrors.Clone(appErrors.ErrAttemptSubmitted, "attempt already submitted")
	}
	submittedAt := time.Now().UTC()
	if err := s.attempts.SaveSubmission(ctx, attemptID, req.Answers, submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAttemptSubmitted, "attempt already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	attempt.Answers = req.Answers
	attempt.SubmittedAt = &submittedAt

	if score, ok, err := s.coarseScore(ctx, attempt); err != nil {
		return nil, err
	} else if ok {
		if err := s.attempts.SetScore(ctx, attemptID, score); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store coarse score")
		}
		attempt.Score = &score
	}
	return attempt, nil
}

// RecordTabSwitch bumps the integrity counter for an open attempt.
func (s *AttemptService) RecordTabSwitch(ctx context.Context, attemptID string) (int, error) {
	attempt, err := s.findAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if attempt.Submitted() {
		return attempt.TabSwitchCount, nil
	}
	count, err := s.attempts.IncrementTabSwitch(ctx, attemptID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record tab switch")
	}
	return count, nil
}

// coarseScore auto-computes the submission percentage when every question
// is auto-scorable. Mixed exams stay unscored until a teacher grades them.
func (s *AttemptService) coarseScore(ctx context.Context, attempt *models.Attempt) (float64, bool, error) {
	questions, err := s.exams.ListQuestions(ctx, attempt.ExamID)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	if len(questions) == 0 {
		return 0, false, nil
	}
	earned := 0.0
	possible := 0.0
	for _, question := range questions {
		if !question.Type.AutoScorable() {
			return 0, false, nil
		}
		possible += question.MaxMarks
		if answerMatches(attempt.Answers[question.ID], question.Options) {
			earned += question.MaxMarks
		}
	}
	if possible == 0 {
		return 0, false, nil
	}
	return roundScore(earned / possible * 100), true, nil
}

func (s *AttemptService) findAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attempt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attempt")
	}
	return attempt, nil
}
