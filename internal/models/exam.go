package models

import "time"

// AssessmentType distinguishes continuous assessment from end-of-term exams.
type AssessmentType string

const (
	AssessmentExam AssessmentType = "EXAM"
	AssessmentCA   AssessmentType = "CA"
)

// Exam represents an assessment owning an ordered sequence of questions.
type Exam struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Type            AssessmentType `db:"type" json:"type"`
	SubjectID       string         `db:"subject_id" json:"subject_id"`
	ProgramID       string         `db:"program_id" json:"program_id"`
	Term            Term           `db:"term" json:"term"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Published       bool           `db:"published" json:"published"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionEssay       QuestionType = "ESSAY"
)

// AutoScorable reports whether the question type can be graded without a
// teacher.
func (t QuestionType) AutoScorable() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// Question is a single exam question.
type Question struct {
	ID       string       `db:"id" json:"id"`
	ExamID   string       `db:"exam_id" json:"exam_id"`
	Text     string       `db:"text" json:"text"`
	Type     QuestionType `db:"type" json:"type"`
	MaxMarks float64      `db:"max_marks" json:"max_marks"`
	OrderNum int          `db:"order_num" json:"order_num"`
	Options  []Option     `json:"options,omitempty"`
}

// Option is one selectable answer for an MCQ or TRUE_FALSE question.
type Option struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	IsCorrect  bool   `db:"is_correct" json:"is_correct"`
	OrderNum   int    `db:"order_num" json:"order_num"`
}

// ExamPayload is the cached exam body sent to students. Correct-answer
// flags are stripped before caching.
type ExamPayload struct {
	ExamID          string            `json:"exam_id"`
	Title           string            `json:"title"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []PayloadQuestion `json:"questions"`
}

// PayloadQuestion is a question as delivered to a student.
type PayloadQuestion struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Type     QuestionType    `json:"type"`
	MaxMarks float64         `json:"max_marks"`
	OrderNum int             `json:"order_num"`
	Options  []PayloadOption `json:"options,omitempty"`
}

// PayloadOption is an option with the correctness flag removed.
type PayloadOption struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	OrderNum int    `json:"order_num"`
}
