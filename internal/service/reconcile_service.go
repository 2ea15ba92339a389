package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/pkg/export"
)

// Reconciliation table labels.
const (
	LabelAbsentInHomeroom    = "students_marked_absent_in_homeroom_but_not_uniformally_absent_from_classes"
	LabelNotAbsentInHomeroom = "students_marked_not_absent_in_homeroom_but_absent_in_classes"
)

// Reconciliation count and summary columns.
const (
	ColClassesNotAbsent  = "Count of Classes Not Absent"
	ColClassesAbsent     = "Count of Classes Absent"
	ColHomeroomNotAbsent = "Count of Homeroom Not Absent"
	ColHomeroomAbsent    = "Count of Homeroom Absent"
	ColHRSummary         = "HR Summary"
	ColTotalClasses      = "Total Classes"
)

const noteDelimiter = ": "

// Reconciliation holds both disagreement tables between homeroom and class attendance.
type Reconciliation struct {
	AbsentInHomeroom    export.Table
	NotAbsentInHomeroom export.Table
}

// Attachments lists the tables in dispatch order.
func (r Reconciliation) Attachments() []models.Attachment {
	return []models.Attachment{
		{Label: LabelAbsentInHomeroom, Table: r.AbsentInHomeroom},
		{Label: LabelNotAbsentInHomeroom, Table: r.NotAbsentInHomeroom},
	}
}

// ReconcileService cross-checks homeroom attendance against class attendance per student and day.
type ReconcileService struct {
	absentLabel string
}

// NewReconcileService constructs the reconciler.
func NewReconcileService(absentLabel string) *ReconcileService {
	if absentLabel == "" {
		absentLabel = models.DefaultAbsentStatus
	}
	return &ReconcileService{absentLabel: absentLabel}
}

type dayKey struct {
	studentID string
	date      string
}

func keyOf(r models.AttendanceRow) dayKey {
	return dayKey{studentID: r.StudentID, date: r.DateKey()}
}

// partition splits rows on the absent label and counts each side per student and day.
type partition struct {
	absent, notAbsent           []models.AttendanceRow
	absentCount, notAbsentCount map[dayKey]int
}

func (s *ReconcileService) partition(rows []models.AttendanceRow) partition {
	p := partition{absentCount: map[dayKey]int{}, notAbsentCount: map[dayKey]int{}}
	for _, r := range rows {
		if r.Status == s.absentLabel {
			p.absent = append(p.absent, r)
			p.absentCount[keyOf(r)]++
			continue
		}
		p.notAbsent = append(p.notAbsent, r)
		p.notAbsentCount[keyOf(r)]++
	}
	return p
}

type direction struct {
	trigger      map[dayKey]int
	opposing     map[dayKey]int
	opposingName string
	homeroom     []models.AttendanceRow
	classes      []models.AttendanceRow
}

// Reconcile builds both tables:
//   - homeroom marks the student absent exactly once that day but some class does not;
//   - homeroom marks the student not absent exactly once that day but some class marks absent.
func (s *ReconcileService) Reconcile(homeroomRows, classRows []models.AttendanceRow) Reconciliation {
	hr := s.partition(homeroomRows)
	cl := s.partition(classRows)

	totals := map[dayKey]int{}
	for _, r := range classRows {
		totals[keyOf(r)]++
	}

	return Reconciliation{
		AbsentInHomeroom: buildDiscrepancies(direction{
			trigger:      hr.absentCount,
			opposing:     cl.notAbsentCount,
			opposingName: ColClassesNotAbsent,
			homeroom:     hr.absent,
			classes:      cl.notAbsent,
		}, totals),
		NotAbsentInHomeroom: buildDiscrepancies(direction{
			trigger:      hr.notAbsentCount,
			opposing:     cl.absentCount,
			opposingName: ColClassesAbsent,
			homeroom:     hr.notAbsent,
			classes:      cl.absent,
		}, totals),
	}
}

func buildDiscrepancies(d direction, totals map[dayKey]int) export.Table {
	flagged := map[dayKey]struct{}{}
	for k, n := range d.trigger {
		if n == 1 && d.opposing[k] > 0 {
			flagged[k] = struct{}{}
		}
	}

	events := map[dayKey][]models.AttendanceRow{}
	for _, r := range d.classes {
		k := keyOf(r)
		if _, ok := flagged[k]; ok {
			events[k] = append(events[k], r)
		}
	}
	maxIndex := 0
	for k := range events {
		sortClassEvents(events[k])
		if n := len(events[k]); n > maxIndex {
			maxIndex = n
		}
	}

	var matched []models.AttendanceRow
	for _, r := range d.homeroom {
		k := keyOf(r)
		if _, ok := flagged[k]; ok && len(events[k]) > 0 {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.GradeNumber != b.GradeNumber {
			return a.GradeNumber < b.GradeNumber
		}
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		return a.StudentID < b.StudentID
	})

	columns := []string{ColDate, ColStudentID, ColStudentName, ColYearGroup, ColHomeroomAdvisor, ColGrade, ColGradeNumber, ColHRSummary, ColTotalClasses, d.opposingName}
	for i := 1; i <= maxIndex; i++ {
		columns = append(columns, fmt.Sprintf("Class%d", i), fmt.Sprintf("StatusNote%d", i))
	}

	table := export.NewTable(columns...)
	for _, r := range matched {
		k := keyOf(r)
		cells := []string{
			k.date,
			quoteID(r.StudentID),
			r.StudentName,
			r.YearGroup,
			r.HomeroomAdvisor,
			r.Grade,
			strconv.Itoa(r.GradeNumber),
			statusNote(r.Status, r.Note),
			strconv.Itoa(totals[k]),
			strconv.Itoa(d.opposing[k]),
		}
		for _, ev := range events[k] {
			cells = append(cells, ev.Class, statusNote(ev.Status, ev.Note))
		}
		table.Append(cells...)
	}
	return table.DropDuplicates()
}

// sortClassEvents fixes the sequence numbering of one student's classes on a day.
func sortClassEvents(rows []models.AttendanceRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if c := export.CompareValues(a.Period, b.Period); c != 0 {
			return c < 0
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		return a.Note < b.Note
	})
}

func statusNote(status, note string) string {
	if strings.TrimSpace(note) == "" {
		return status
	}
	return status + noteDelimiter + `"` + note + `"`
}

// quoteID keeps spreadsheets from coercing identifiers into numbers.
func quoteID(id string) string {
	return `="` + id + `"`
}
