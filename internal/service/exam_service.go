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

type examStore interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, programID string, term models.Term) ([]models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	SetPublished(ctx context.Context, id string, published bool) error
	ListQuestions(ctx context.Context, examID string) ([]models.Question, error)
	ReplaceQuestions(ctx context.Context, examID string, questions []models.Question) error
}

type payloadCache interface {
	Get(ctx context.Context, examID string) (*models.ExamPayload, error)
	Set(ctx context.Context, payload *models.ExamPayload, ttl time.Duration) error
	Invalidate(ctx context.Context, examID string) error
}

// CreateExamRequest is the payload for creating an assessment.
type CreateExamRequest struct {
	Title           string `json:"title" validate:"required,min=3,max=255"`
	Type            string `json:"type" validate:"required,oneof=EXAM CA"`
	SubjectID       string `json:"subject_id" validate:"required"`
	ProgramID       string `json:"program_id" validate:"required"`
	Term            string `json:"term" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=480"`
}

// QuestionInput describes one question in a replace payload.
type QuestionInput struct {
	Text     string        `json:"text" validate:"required,min=1,max=2000"`
	Type     string        `json:"type" validate:"required,oneof=MCQ TRUE_FALSE SHORT_ANSWER ESSAY"`
	MaxMarks float64       `json:"max_marks" validate:"required,gt=0"`
	Options  []OptionInput `json:"options" validate:"dive"`
}

// OptionInput describes one selectable option.
type OptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// ReplaceQuestionsRequest swaps an exam's question set.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" validate:"required,dive"`
}

// ExamService manages assessments and their cached student payloads.
type ExamService struct {
	exams      examStore
	cache      payloadCache
	payloadTTL time.Duration
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewExamService constructs ExamService.
func NewExamService(exams examStore, cache payloadCache, payloadTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if payloadTTL <= 0 {
		payloadTTL = 6 * time.Hour
	}
	return &ExamService{exams: exams, cache: cache, payloadTTL: payloadTTL, metrics: metrics, validator: validate, logger: logger}
}

// Create registers a new assessment.
func (s *ExamService) Create(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	term, err := models.ParseTerm(req.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
	}
	exam := &models.Exam{
		Title:           req.Title,
		Type:            models.AssessmentType(req.Type),
		SubjectID:       req.SubjectID,
		ProgramID:       req.ProgramID,
		Term:            term,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// List returns assessments, optionally filtered by program and term.
func (s *ExamService) List(ctx context.Context, programID, term string) ([]models.Exam, error) {
	var parsed models.Term
	if term != "" {
		var err error
		parsed, err = models.ParseTerm(term)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
		}
	}
	exams, err := s.exams.List(ctx, programID, parsed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// ReplaceQuestions swaps the exam's question set. MCQ and TRUE_FALSE
// questions must flag at least one option correct, otherwise auto-grading
// could never award marks.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID string, req ReplaceQuestionsRequest) ([]models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid questions payload")
	}
	if _, err := s.findExam(ctx, examID); err != nil {
		return nil, err
	}
	questions := make([]models.Question, 0, len(req.Questions))
	for i, input := range req.Questions {
		questionType := models.QuestionType(input.Type)
		if questionType.AutoScorable() {
			correct := 0
			for _, option := range input.Options {
				if option.IsCorrect {
					correct++
				}
			}
			if correct == 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "auto-scorable question needs a correct option")
			}
		}
		question := models.Question{
			Text:     input.Text,
			Type:     questionType,
			MaxMarks: input.MaxMarks,
			OrderNum: i + 1,
		}
		for j, option := range input.Options {
			question.Options = append(question.Options, models.Option{
				Text:      option.Text,
				IsCorrect: option.IsCorrect,
				OrderNum:  j + 1,
			})
		}
		questions = append(questions, question)
	}
	if err := s.exams.ReplaceQuestions(ctx, examID, questions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace questions")
	}
	if err := s.cache.Invalidate(ctx, examID); err != nil {
		s.logger.Warn("payload cache invalidation failed", zap.String("exam_id", examID), zap.Error(err))
	}
	return questions, nil
}

// Publish opens the exam to students and warms the payload cache.
func (s *ExamService) Publish(ctx context.Context, examID string) error {
	exam, err := s.findExam(ctx, examID)
	if err != nil {
		return err
	}
	if err := s.exams.SetPublished(ctx, examID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish exam")
	}
	exam.Published = true
	if _, err := s.buildAndCachePayload(ctx, exam); err != nil {
		return err
	}
	return nil
}

// Payload returns the student-facing exam body, correct answers stripped,
// served from cache when warm.
func (s *ExamService) Payload(ctx context.Context, examID string) (*models.ExamPayload, error) {
	exam, err := s.findExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Published {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exam not published")
	}
	lookupStart := time.Now()
	cached, err := s.cache.Get(ctx, examID)
	if err != nil {
		s.logger.Warn("payload cache read failed", zap.String("exam_id", examID), zap.Error(err))
	}
	s.metrics.RecordCacheOperation(cached != nil, time.Since(lookupStart))
	if cached != nil {
		return cached, nil
	}
	return s.buildAndCachePayload(ctx, exam)
}

func (s *ExamService) buildAndCachePayload(ctx context.Context, exam *models.Exam) (*models.ExamPayload, error) {
	questions, err := s.exams.ListQuestions(ctx, exam.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	payload := &models.ExamPayload{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
	}
	for _, question := range questions {
		pq := models.PayloadQuestion{
			ID:       question.ID,
			Text:     question.Text,
			Type:     question.Type,
			MaxMarks: question.MaxMarks,
			OrderNum: question.OrderNum,
		}
		for _, option := range question.Options {
			pq.Options = append(pq.Options, models.PayloadOption{ID: option.ID, Text: option.Text, OrderNum: option.OrderNum})
		}
		payload.Questions = append(payload.Questions, pq)
	}
	if err := s.cache.Set(ctx, payload, s.payloadTTL); err != nil {
		s.logger.Warn("payload cache write failed", zap.String("exam_id", exam.ID), zap.Error(err))
	}
	return payload, nil
}

func (s *ExamService) findExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}
