package models

import (
	"time"

	"github.com/noah-isme/sma-attendance-report/pkg/export"
)

// ReportKind names the report families the runner can produce.
type ReportKind string

const (
	ReportKindHomeroom ReportKind = "homeroom"
	ReportKindClass    ReportKind = "class"
	ReportKindCombo    ReportKind = "combo"
)

// ReportScope controls the length of the reporting window.
type ReportScope string

const (
	ReportScopeWeekly  ReportScope = "weekly"
	ReportScopeMonthly ReportScope = "monthly"
	ReportScopeDaily   ReportScope = "daily"
)

// Valid returns true when the scope has a range resolver.
func (s ReportScope) Valid() bool {
	switch s {
	case ReportScopeWeekly, ReportScopeMonthly, ReportScopeDaily:
		return true
	default:
		return false
	}
}

// ReportFormat enumerates supported attachment encodings.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatPDF  ReportFormat = "pdf"
)

// Valid returns true for renderable formats.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatXLSX || f == ReportFormatPDF
}

// Attachment is one named table handed to the dispatcher.
// Hint optionally overrides the run format for this table.
type Attachment struct {
	Label string
	Hint  string
	Table export.Table
}

// DateRange is the inclusive reporting window.
type DateRange struct {
	Start time.Time
	End   time.Time
}
