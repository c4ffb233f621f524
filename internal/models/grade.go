package models

import "time"

// QuestionGrade is the teacher-assigned (or auto-derived) mark for one
// question of one attempt. One logical row per (attempt, question);
// re-grading overwrites.
type QuestionGrade struct {
	ID              string    `db:"id" json:"id"`
	AttemptID       string    `db:"attempt_id" json:"attempt_id"`
	QuestionID      string    `db:"question_id" json:"question_id"`
	MarksAwarded    float64   `db:"marks_awarded" json:"marks_awarded"`
	TeacherComment  *string   `db:"teacher_comment" json:"teacher_comment,omitempty"`
	TeacherOverride bool      `db:"teacher_override" json:"teacher_override"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// GradeComponent names the two halves of a subject grade.
type GradeComponent string

const (
	ComponentCA   GradeComponent = "CA"
	ComponentExam GradeComponent = "EXAM"
)

// SubjectGrade is the single source of truth for one student's standing in
// a subject for a term. Nil components mean "pending", never zero. The
// version column serialises concurrent read-compute-write cycles.
type SubjectGrade struct {
	ID                   string    `db:"id" json:"id"`
	StudentID            string    `db:"student_id" json:"student_id"`
	SubjectID            string    `db:"subject_id" json:"subject_id"`
	ProgramID            string    `db:"program_id" json:"program_id"`
	Term                 Term      `db:"term" json:"term"`
	ContinuousAssessment *float64  `db:"continuous_assessment" json:"continuous_assessment,omitempty"`
	Examination          *float64  `db:"examination" json:"examination,omitempty"`
	TotalScore           *float64  `db:"total_score" json:"total_score,omitempty"`
	Grade                *string   `db:"grade" json:"grade,omitempty"`
	TeacherComment       *string   `db:"teacher_comment" json:"teacher_comment,omitempty"`
	Version              int       `db:"version" json:"version"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
	SubjectName          string    `db:"subject_name" json:"subject_name,omitempty"`
}

// SubjectGradeKey identifies the logical subject grade row.
type SubjectGradeKey struct {
	StudentID string
	SubjectID string
	ProgramID string
	Term      Term
}

// SubjectGradeFilter narrows subject grade queries.
type SubjectGradeFilter struct {
	StudentID string
	SubjectID string
	ProgramID string
	Term      Term
}
