package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type questionGradeStore interface {
	Upsert(ctx context.Context, grade *models.QuestionGrade) error
	UpsertProvisional(ctx context.Context, grade *models.QuestionGrade) (bool, error)
	ListByAttempt(ctx context.Context, attemptID string) ([]models.QuestionGrade, error)
}

type attemptReader interface {
	FindByID(ctx context.Context, id string) (*models.Attempt, error)
	SetScore(ctx context.Context, id string, score float64) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListQuestions(ctx context.Context, examID string) ([]models.Question, error)
}

type componentWriter interface {
	SetComponent(ctx context.Context, req SetComponentRequest) (*models.SubjectGrade, error)
}

// UpsertQuestionGradeRequest records a teacher's mark for one question.
type UpsertQuestionGradeRequest struct {
	AttemptID    string  `json:"attempt_id" validate:"required"`
	QuestionID   string  `json:"question_id" validate:"required"`
	MarksAwarded float64 `json:"marks_awarded"`
	Comment      *string `json:"comment,omitempty"`
}

// QuestionGradingService rolls individually graded questions up into
// component scores. Ungraded questions keep the whole component pending
// rather than counting as zero.
type QuestionGradingService struct {
	questionGrades questionGradeStore
	attempts       attemptReader
	exams          examReader
	subjectGrades  componentWriter
	policy         models.WeightPolicy
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewQuestionGradingService constructs QuestionGradingService.
func NewQuestionGradingService(questionGrades questionGradeStore, attempts attemptReader, exams examReader, subjectGrades componentWriter, policy models.WeightPolicy, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *QuestionGradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionGradingService{
		questionGrades: questionGrades,
		attempts:       attempts,
		exams:          exams,
		subjectGrades:  subjectGrades,
		policy:         policy,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
	}
}

// UpsertQuestionGrade saves a teacher's mark for (attempt, question).
// Saving again overwrites the previous row; manual marks always win over
// auto-derived ones.
func (s *QuestionGradingService) UpsertQuestionGrade(ctx context.Context, req UpsertQuestionGradeRequest) (*models.QuestionGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question grade payload")
	}
	attempt, questions, err := s.loadAttempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}
	question := findQuestion(questions, req.QuestionID)
	if question == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not part of attempt's exam")
	}
	if req.MarksAwarded < 0 || req.MarksAwarded > question.MaxMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("marks %.2f outside [0, %.2f]", req.MarksAwarded, question.MaxMarks))
	}

	grade := &models.QuestionGrade{
		AttemptID:       attempt.ID,
		QuestionID:      question.ID,
		MarksAwarded:    req.MarksAwarded,
		TeacherComment:  req.Comment,
		TeacherOverride: true,
	}
	if err := s.questionGrades.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store question grade")
	}
	return grade, nil
}

// AutoGradeAttempt derives provisional marks for auto-scorable questions
// by comparing submitted answers against the options flagged correct. A
// question with several correct options earns full marks only when the
// submitted selection matches all of them. Rows a teacher already graded
// are left untouched and do not count toward the returned total.
func (s *QuestionGradingService) AutoGradeAttempt(ctx context.Context, attemptID string) (int, error) {
	attempt, questions, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if !attempt.Submitted() {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "attempt not yet submitted")
	}

	graded := 0
	for _, question := range questions {
		if !question.Type.AutoScorable() {
			continue
		}
		marks := 0.0
		if answerMatches(attempt.Answers[question.ID], question.Options) {
			marks = question.MaxMarks
		}
		grade := &models.QuestionGrade{
			AttemptID:    attempt.ID,
			QuestionID:   question.ID,
			MarksAwarded: marks,
		}
		written, err := s.questionGrades.UpsertProvisional(ctx, grade)
		if err != nil {
			return graded, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store provisional grade")
		}
		if written {
			graded++
		}
	}
	s.metrics.RecordAutoGraded(graded)
	s.logger.Info("attempt auto-graded",
		zap.String("attempt_id", attemptID),
		zap.Int("questions", graded))
	return graded, nil
}

// Breakdown returns the per-question review view for an attempt, including
// the raw component score when every question has been graded.
func (s *QuestionGradingService) Breakdown(ctx context.Context, attemptID string) (*models.AttemptBreakdown, error) {
	attempt, questions, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	grades, err := s.questionGrades.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question grades")
	}
	byQuestion := make(map[string]models.QuestionGrade, len(grades))
	for _, grade := range grades {
		byQuestion[grade.QuestionID] = grade
	}

	breakdown := &models.AttemptBreakdown{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		StudentID: attempt.StudentID,
	}
	rawScore := 0.0
	for _, question := range questions {
		result := models.QuestionResult{
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			QuestionType:  question.Type,
			StudentAnswer: attempt.Answers[question.ID],
			MaxMarks:      question.MaxMarks,
		}
		if grade, ok := byQuestion[question.ID]; ok {
			marks := grade.MarksAwarded
			result.MarksAwarded = &marks
			result.TeacherComment = grade.TeacherComment
			breakdown.GradedCount++
			rawScore += marks
		}
		breakdown.RawScoreMax += question.MaxMarks
		breakdown.Questions = append(breakdown.Questions, result)
	}
	breakdown.TotalCount = len(questions)
	breakdown.FullyGraded = breakdown.TotalCount > 0 && breakdown.GradedCount == breakdown.TotalCount
	if breakdown.FullyGraded {
		breakdown.RawScore = &rawScore
	}
	return breakdown, nil
}

// FinalizeAttempt rescales a fully graded attempt onto the component
// maximum and writes it through to the student's subject grade. Partially
// graded attempts are refused so that a half-marked exam never shows up as
// a low score.
func (s *QuestionGradingService) FinalizeAttempt(ctx context.Context, attemptID string) (*models.SubjectGrade, error) {
	breakdown, err := s.Breakdown(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !breakdown.FullyGraded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("grading incomplete: %d of %d questions graded", breakdown.GradedCount, breakdown.TotalCount))
	}
	exam, err := s.exams.FindByID(ctx, breakdown.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	component := models.ComponentExam
	if exam.Type == models.AssessmentCA {
		component = models.ComponentCA
	}
	scaled, err := RescaleComponent(*breakdown.RawScore, breakdown.RawScoreMax, component, s.policy)
	if err != nil {
		return nil, err
	}
	grade, err := s.subjectGrades.SetComponent(ctx, SetComponentRequest{
		StudentID: breakdown.StudentID,
		SubjectID: exam.SubjectID,
		ProgramID: exam.ProgramID,
		Term:      string(exam.Term),
		Component: component,
		Value:     scaled,
	})
	if err != nil {
		return nil, err
	}
	percentage := roundScore(*breakdown.RawScore / breakdown.RawScoreMax * 100)
	if err := s.attempts.SetScore(ctx, attemptID, percentage); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attempt score")
	}
	s.logger.Info("attempt finalized",
		zap.String("attempt_id", attemptID),
		zap.String("component", string(component)),
		zap.Float64("scaled", scaled))
	return grade, nil
}

func (s *QuestionGradingService) loadAttempt(ctx context.Context, attemptID string) (*models.Attempt, []models.Question, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attempt not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attempt")
	}
	questions, err := s.exams.ListQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam questions")
	}
	return attempt, questions, nil
}

func findQuestion(questions []models.Question, id string) *models.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

// answerMatches compares a submitted answer against the correct option
// set. Multi-select answers arrive comma-separated; order is irrelevant.
func answerMatches(answer string, options []models.Option) bool {
	var correct []string
	for _, option := range options {
		if option.IsCorrect {
			correct = append(correct, option.ID)
		}
	}
	if len(correct) == 0 {
		return false
	}
	var picked []string
	for _, part := range strings.Split(answer, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			picked = append(picked, trimmed)
		}
	}
	if len(picked) != len(correct) {
		return false
	}
	sort.Strings(correct)
	sort.Strings(picked)
	for i := range correct {
		if picked[i] != correct[i] {
			return false
		}
	}
	return true
}
