package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

type programGradesReader interface {
	FetchByProgramTerm(ctx context.Context, programID string, term models.Term) (map[string][]models.SubjectGrade, error)
}

type rosterReader interface {
	EnrolledStudents(ctx context.Context, programID string) ([]models.Student, error)
}

// RankingService derives class positions from subject grade averages.
// Rankings are recomputed in full on every call; a single grade write can
// move every position, so nothing here is cached.
type RankingService struct {
	grades  programGradesReader
	roster  rosterReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRankingService constructs RankingService.
func NewRankingService(grades programGradesReader, roster rosterReader, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{grades: grades, roster: roster, metrics: metrics, logger: logger}
}

// RankClass ranks every enrolled student with at least one graded subject,
// descending by average. Ties share a position and the next distinct
// average skips ahead by the tie-group size: averages 90, 85, 85, 70 rank
// 1, 2, 2, 4. Students with nothing graded are left out entirely; they
// cannot be meaningfully ranked and do not count toward the class size.
func (s *RankingService) RankClass(ctx context.Context, programID string, term models.Term) (*models.ClassRanking, error) {
	start := time.Now()
	if _, err := models.ParseTerm(string(term)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
	}
	students, err := s.roster.EnrolledStudents(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	gradesByStudent, err := s.grades.FetchByProgramTerm(ctx, programID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	entries := make([]models.ClassRankEntry, 0, len(students))
	for _, student := range students {
		total, count := sumGraded(gradesByStudent[student.ID])
		if count == 0 {
			continue
		}
		entries = append(entries, models.ClassRankEntry{
			StudentID:    student.ID,
			StudentName:  student.FullName,
			AverageScore: roundScore(total / float64(count)),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageScore != entries[j].AverageScore {
			return entries[i].AverageScore > entries[j].AverageScore
		}
		if entries[i].StudentName != entries[j].StudentName {
			return entries[i].StudentName < entries[j].StudentName
		}
		return entries[i].StudentID < entries[j].StudentID
	})

	for i := range entries {
		if i > 0 && entries[i].AverageScore == entries[i-1].AverageScore {
			entries[i].Position = entries[i-1].Position
			continue
		}
		entries[i].Position = i + 1
	}

	s.metrics.ObserveRankingBuild(time.Since(start))
	return &models.ClassRanking{
		ProgramID:     programID,
		Term:          term,
		TotalStudents: len(entries),
		Entries:       entries,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// ClassRoster returns the program's enrolled students in roster order.
func (s *RankingService) ClassRoster(ctx context.Context, programID string) ([]models.Student, error) {
	students, err := s.roster.EnrolledStudents(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return students, nil
}

// sumGraded totals non-pending subject scores. Pending subjects carry no
// information and are excluded from both the sum and the count.
func sumGraded(grades []models.SubjectGrade) (float64, int) {
	total := 0.0
	count := 0
	for _, grade := range grades {
		if grade.TotalScore == nil {
			continue
		}
		total += *grade.TotalScore
		count++
	}
	return total, count
}
