package models

import "time"

// TermSubjectLine is one subject row on a term report.
type TermSubjectLine struct {
	SubjectID            string   `json:"subject_id"`
	SubjectName          string   `json:"subject_name"`
	ContinuousAssessment *float64 `json:"continuous_assessment,omitempty"`
	Examination          *float64 `json:"examination,omitempty"`
	TotalScore           *float64 `json:"total_score,omitempty"`
	Grade                *string  `json:"grade,omitempty"`
	TeacherComment       *string  `json:"teacher_comment,omitempty"`
}

// TermReport aggregates one student's standing for one term. It is a
// read-side projection recomputed from subject grades on every request;
// HasData distinguishes "nothing graded yet" from a genuine zero average.
type TermReport struct {
	StudentID      string            `json:"student_id"`
	ProgramID      string            `json:"program_id"`
	Term           Term              `json:"term"`
	HasData        bool              `json:"has_data"`
	TotalSubjects  int               `json:"total_subjects"`
	TotalScore     float64           `json:"total_score"`
	AverageScore   float64           `json:"average_score"`
	Grade          string            `json:"grade,omitempty"`
	Position       int               `json:"position,omitempty"`
	TotalStudents  int               `json:"total_students"`
	Subjects       []TermSubjectLine `json:"subjects"`
	AttendanceRate *float64          `json:"attendance_rate,omitempty"`
	ConductGrade   *string           `json:"conduct_grade,omitempty"`
	Remarks        *string           `json:"remarks,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// ClassRankEntry positions one student within a program+term ranking.
// Ties share a position; the next distinct average skips by the tie-group
// size (standard competition ranking).
type ClassRankEntry struct {
	StudentID    string  `json:"student_id"`
	StudentName  string  `json:"student_name"`
	AverageScore float64 `json:"average_score"`
	Position     int     `json:"position"`
}

// ClassRanking is the full ranking snapshot for a program+term.
type ClassRanking struct {
	ProgramID     string           `json:"program_id"`
	Term          Term             `json:"term"`
	TotalStudents int              `json:"total_students"`
	Entries       []ClassRankEntry `json:"entries"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// AnnualReport rolls three term reports into a yearly view. Terms without
// graded subjects are excluded from the yearly mean, never counted as zero.
type AnnualReport struct {
	StudentID     string       `json:"student_id"`
	ProgramID     string       `json:"program_id"`
	HasData       bool         `json:"has_data"`
	Terms         []TermReport `json:"terms"`
	YearlyAverage float64      `json:"yearly_average"`
	Grade         string       `json:"grade,omitempty"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

// QuestionResult is a per-question breakdown row for grading review.
type QuestionResult struct {
	QuestionID     string       `json:"question_id"`
	QuestionText   string       `json:"question_text"`
	QuestionType   QuestionType `json:"question_type"`
	StudentAnswer  string       `json:"student_answer"`
	MarksAwarded   *float64     `json:"marks_awarded,omitempty"`
	MaxMarks       float64      `json:"max_marks"`
	TeacherComment *string      `json:"teacher_comment,omitempty"`
}

// AttemptBreakdown couples an attempt with its per-question results.
type AttemptBreakdown struct {
	AttemptID    string           `json:"attempt_id"`
	ExamID       string           `json:"exam_id"`
	StudentID    string           `json:"student_id"`
	Questions    []QuestionResult `json:"questions"`
	GradedCount  int              `json:"graded_count"`
	TotalCount   int              `json:"total_count"`
	FullyGraded  bool             `json:"fully_graded"`
	RawScore     *float64         `json:"raw_score,omitempty"`
	RawScoreMax  float64          `json:"raw_score_max"`
}
