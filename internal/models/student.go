package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Program is a course of study offering an ordered set of subjects.
type Program struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Track     string    `db:"track" json:"track"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Subject represents an academic subject offered by one or more programs.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment registers a student into a program.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
	Active    bool      `db:"active" json:"active"`
}

// TermRecord holds homeroom data attached to a student's term: attendance,
// conduct and the teacher's closing remarks. Optional; reports tolerate its
// absence.
type TermRecord struct {
	ID             string   `db:"id" json:"id"`
	StudentID      string   `db:"student_id" json:"student_id"`
	ProgramID      string   `db:"program_id" json:"program_id"`
	Term           Term     `db:"term" json:"term"`
	AttendanceRate *float64 `db:"attendance_rate" json:"attendance_rate,omitempty"`
	ConductGrade   *string  `db:"conduct_grade" json:"conduct_grade,omitempty"`
	Remarks        *string  `db:"remarks" json:"remarks,omitempty"`
}
