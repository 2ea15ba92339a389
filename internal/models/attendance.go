package models

import "time"

// Scope selects which attendance view a query or table refers to.
type Scope string

const (
	ScopeHomeroom Scope = "homeroom"
	ScopeClass    Scope = "class"
)

// Valid returns true when the scope is a supported value.
func (s Scope) Valid() bool {
	return s == ScopeHomeroom || s == ScopeClass
}

// Default attendance category names.
const (
	DefaultAbsentStatus  = "Absent"
	DefaultPresentStatus = "Present"
)

// AttendanceRow is one attendance event for a student on a school day.
// Class and Period are set for the class view; YearGroup and HomeroomAdvisor for the homeroom view.
type AttendanceRow struct {
	StudentID       string    `json:"student_id"`
	StudentName     string    `json:"student_name"`
	Grade           string    `json:"grade"`
	GradeNumber     int       `json:"grade_number"`
	Program         string    `json:"program"`
	Class           string    `json:"class,omitempty"`
	YearGroup       string    `json:"year_group,omitempty"`
	HomeroomAdvisor string    `json:"homeroom_advisor,omitempty"`
	Date            time.Time `json:"date"`
	Day             string    `json:"day"`
	Period          string    `json:"period,omitempty"`
	Status          string    `json:"status"`
	Note            string    `json:"note"`
}

// DateKey returns the row date formatted with DateLayout.
func (r AttendanceRow) DateKey() string {
	return r.Date.Format(DateLayout)
}

// AttendanceRecord is the raw store projection before normalisation.
type AttendanceRecord struct {
	StudentID       string    `db:"student_id"`
	StudentName     string    `db:"student_name"`
	Grade           *string   `db:"grade"`
	GradeNumber     int       `db:"grade_number"`
	Program         *string   `db:"program"`
	Class           *string   `db:"class_name"`
	YearGroup       *string   `db:"year_group"`
	HomeroomAdvisor *string   `db:"homeroom_advisor"`
	Date            time.Time `db:"date"`
	Period          *string   `db:"period"`
	Status          string    `db:"status"`
	Note            *string   `db:"note"`
}

// AttendanceQuery scopes a store fetch to a date window and its school days.
type AttendanceQuery struct {
	Scope      Scope
	StartDate  time.Time
	EndDate    time.Time
	SchoolDays []time.Time
	Weekends   []int
}
