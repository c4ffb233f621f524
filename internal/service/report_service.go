package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
	"github.com/rcplaneboss/gradebook-api/pkg/export"
)

type subjectGradeLister interface {
	List(ctx context.Context, filter models.SubjectGradeFilter) ([]models.SubjectGrade, error)
}

type classRanker interface {
	RankClass(ctx context.Context, programID string, term models.Term) (*models.ClassRanking, error)
}

type termRecordReader interface {
	EnrolledStudents(ctx context.Context, programID string) ([]models.Student, error)
	IsEnrolled(ctx context.Context, studentID, programID string) (bool, error)
	TermRecord(ctx context.Context, studentID, programID string, term models.Term) (*models.TermRecord, error)
}

// ReportService assembles term and annual reports. Reports are pure
// projections over the subject grade table; nothing is persisted and every
// request reflects the grades as of the moment it runs.
type ReportService struct {
	grades      subjectGradeLister
	programRows programGradesReader
	ranking     classRanker
	enrollments termRecordReader
	scale       models.GradeScale
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(grades subjectGradeLister, programRows programGradesReader, ranking classRanker, enrollments termRecordReader, scale models.GradeScale, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		grades:      grades,
		programRows: programRows,
		ranking:     ranking,
		enrollments: enrollments,
		scale:       scale,
		metrics:     metrics,
		logger:      logger,
	}
}

// BuildTermReport aggregates one student's term. Pending subjects are kept
// on the report as lines but excluded from every aggregate; a student with
// nothing graded gets an explicit no-data report, never a zero average.
func (s *ReportService) BuildTermReport(ctx context.Context, studentID, programID string, term models.Term) (*models.TermReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReportBuild("term", time.Since(start)) }()
	if _, err := models.ParseTerm(string(term)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
	}
	report := &models.TermReport{
		StudentID:   studentID,
		ProgramID:   programID,
		Term:        term,
		GeneratedAt: time.Now().UTC(),
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, studentID, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return report, nil
	}

	grades, err := s.grades.List(ctx, models.SubjectGradeFilter{StudentID: studentID, ProgramID: programID, Term: term})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}

	totalScore := 0.0
	for _, grade := range grades {
		report.Subjects = append(report.Subjects, models.TermSubjectLine{
			SubjectID:            grade.SubjectID,
			SubjectName:          grade.SubjectName,
			ContinuousAssessment: grade.ContinuousAssessment,
			Examination:          grade.Examination,
			TotalScore:           grade.TotalScore,
			Grade:                grade.Grade,
			TeacherComment:       grade.TeacherComment,
		})
		if grade.TotalScore != nil {
			report.TotalSubjects++
			totalScore += *grade.TotalScore
		}
	}
	if report.TotalSubjects == 0 {
		return report, nil
	}

	report.HasData = true
	report.TotalScore = roundScore(totalScore)
	report.AverageScore = roundScore(totalScore / float64(report.TotalSubjects))
	report.Grade = s.scale.LetterFor(report.AverageScore)

	ranking, err := s.ranking.RankClass(ctx, programID, term)
	if err != nil {
		return nil, err
	}
	report.TotalStudents = ranking.TotalStudents
	for _, entry := range ranking.Entries {
		if entry.StudentID == studentID {
			report.Position = entry.Position
			break
		}
	}

	record, err := s.enrollments.TermRecord(ctx, studentID, programID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term record")
	}
	if record != nil {
		report.AttendanceRate = record.AttendanceRate
		report.ConductGrade = record.ConductGrade
		report.Remarks = record.Remarks
	}
	return report, nil
}

// BuildAnnualReport rolls the three term reports into a yearly view. The
// yearly average runs over terms that actually have data; an empty term
// shrinks the denominator instead of dragging the mean toward zero.
func (s *ReportService) BuildAnnualReport(ctx context.Context, studentID, programID string) (*models.AnnualReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReportBuild("annual", time.Since(start)) }()
	annual := &models.AnnualReport{
		StudentID:   studentID,
		ProgramID:   programID,
		GeneratedAt: time.Now().UTC(),
	}

	sum := 0.0
	counted := 0
	for _, term := range models.Terms() {
		report, err := s.BuildTermReport(ctx, studentID, programID, term)
		if err != nil {
			return nil, err
		}
		annual.Terms = append(annual.Terms, *report)
		if report.HasData {
			sum += report.AverageScore
			counted++
		}
	}
	if counted == 0 {
		return annual, nil
	}

	annual.HasData = true
	annual.YearlyAverage = roundScore(sum / float64(counted))
	annual.Grade = s.scale.LetterFor(annual.YearlyAverage)
	return annual, nil
}

// GradeSheet renders the program+term grade matrix as a CSV dataset, one
// row per enrolled student, one column per subject, pending cells blank.
func (s *ReportService) GradeSheet(ctx context.Context, programID string, term models.Term) (export.Dataset, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReportBuild("sheet", time.Since(start)) }()
	if _, err := models.ParseTerm(string(term)); err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term")
	}
	students, err := s.enrollments.EnrolledStudents(ctx, programID)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	gradesByStudent, err := s.programRows.FetchByProgramTerm(ctx, programID, term)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	subjectNames := map[string]string{}
	for _, grades := range gradesByStudent {
		for _, grade := range grades {
			subjectNames[grade.SubjectID] = grade.SubjectName
		}
	}
	subjectIDs := make([]string, 0, len(subjectNames))
	for id := range subjectNames {
		subjectIDs = append(subjectIDs, id)
	}
	sort.Slice(subjectIDs, func(i, j int) bool { return subjectNames[subjectIDs[i]] < subjectNames[subjectIDs[j]] })

	headers := []string{"Student"}
	for _, id := range subjectIDs {
		headers = append(headers, subjectNames[id])
	}
	headers = append(headers, "Average")

	dataset := export.Dataset{Headers: headers}
	for _, student := range students {
		row := map[string]string{"Student": student.FullName}
		total, count := sumGraded(gradesByStudent[student.ID])
		for _, grade := range gradesByStudent[student.ID] {
			if grade.TotalScore != nil {
				row[subjectNames[grade.SubjectID]] = fmt.Sprintf("%.2f", *grade.TotalScore)
			}
		}
		if count > 0 {
			row["Average"] = fmt.Sprintf("%.2f", roundScore(total/float64(count)))
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset, nil
}
