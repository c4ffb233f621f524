package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/repository"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type subjectGradeStore interface {
	Get(ctx context.Context, key models.SubjectGradeKey) (*models.SubjectGrade, error)
	List(ctx context.Context, filter models.SubjectGradeFilter) ([]models.SubjectGrade, error)
	UpsertVersioned(ctx context.Context, grade *models.SubjectGrade, expectedVersion int) error
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, programID string) (bool, error)
}

// SetComponentRequest writes one component of a subject grade.
type SetComponentRequest struct {
	StudentID      string                `json:"student_id" validate:"required"`
	SubjectID      string                `json:"subject_id" validate:"required"`
	ProgramID      string                `json:"program_id" validate:"required"`
	Term           string                `json:"term" validate:"required"`
	Component      models.GradeComponent `json:"component" validate:"required,oneof=CA EXAM"`
	Value          float64               `json:"value"`
	TeacherComment *string               `json:"teacher_comment,omitempty"`
}

// SubjectGradeService owns the read-compute-write cycle that keeps
// totalScore and grade consistent with their components.
type SubjectGradeService struct {
	grades      subjectGradeStore
	enrollments enrollmentChecker
	policy      models.WeightPolicy
	scale       models.GradeScale
	retries     int
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubjectGradeService constructs SubjectGradeService.
func NewSubjectGradeService(grades subjectGradeStore, enrollments enrollmentChecker, policy models.WeightPolicy, scale models.GradeScale, retries int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubjectGradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = 3
	}
	return &SubjectGradeService{
		grades:      grades,
		enrollments: enrollments,
		policy:      policy,
		scale:       scale,
		retries:     retries,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns subject grades matching the filter.
func (s *SubjectGradeService) List(ctx context.Context, filter models.SubjectGradeFilter) ([]models.SubjectGrade, error) {
	if filter.Term != "" {
		if _, err := models.ParseTerm(string(filter.Term)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
		}
	}
	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject grades")
	}
	return grades, nil
}

// SetComponent stores one component score and recombines the total under a
// fresh read of both components. Version conflicts are retried a bounded
// number of times; each retry re-reads, so a racing CA and exam write can
// never combine stale halves.
func (s *SubjectGradeService) SetComponent(ctx context.Context, req SetComponentRequest) (*models.SubjectGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	term, err := models.ParseTerm(req.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
	}
	enrolled, err := s.enrollments.IsEnrolled(ctx, req.StudentID, req.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in program")
	}

	key := models.SubjectGradeKey{StudentID: req.StudentID, SubjectID: req.SubjectID, ProgramID: req.ProgramID, Term: term}
	for attempt := 0; attempt <= s.retries; attempt++ {
		grade, version, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}
		switch req.Component {
		case models.ComponentCA:
			value := req.Value
			grade.ContinuousAssessment = &value
		case models.ComponentExam:
			value := req.Value
			grade.Examination = &value
		}
		if req.TeacherComment != nil {
			grade.TeacherComment = req.TeacherComment
		}

		combined, err := ComputeSubjectGrade(grade.ContinuousAssessment, grade.Examination, s.policy, s.scale)
		if err != nil {
			return nil, err
		}
		grade.TotalScore = combined.TotalScore
		grade.Grade = combined.Grade

		if err := s.grades.UpsertVersioned(ctx, grade, version); err != nil {
			if errors.Is(err, repository.ErrVersionMismatch) {
				s.metrics.RecordVersionRetry()
				s.logger.Debug("subject grade write conflict, retrying",
					zap.String("student_id", key.StudentID),
					zap.String("subject_id", key.SubjectID),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store subject grade")
		}
		s.metrics.RecordGradeWrite(string(req.Component))
		return grade, nil
	}
	return nil, appErrors.Clone(appErrors.ErrVersionConflict, "subject grade changed concurrently, retry the write")
}

func (s *SubjectGradeService) load(ctx context.Context, key models.SubjectGradeKey) (*models.SubjectGrade, int, error) {
	grade, err := s.grades.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SubjectGrade{
				StudentID: key.StudentID,
				SubjectID: key.SubjectID,
				ProgramID: key.ProgramID,
				Term:      key.Term,
			}, 0, nil
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grade")
	}
	return grade, grade.Version, nil
}
