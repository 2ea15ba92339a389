package service

import (
	"sort"
	"strconv"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/pkg/export"
)

// Report column names.
const (
	ColStudentID       = "Student Id"
	ColStudentName     = "Student Name"
	ColClass           = "Class"
	ColGrade           = "Grade"
	ColGradeNumber     = "Grade #"
	ColProgram         = "Program"
	ColYearGroup       = "Year Group"
	ColHomeroomAdvisor = "Homeroom Advisor"
	ColDate            = "Date"
	ColDay             = "Day"
	ColPeriod          = "Period"
	ColStatus          = "Status"
	ColNote            = "Note"
)

const (
	absentMarker  = `"Absent"`
	missingMarker = "-"
	cellSeparator = "; "
)

// AggregateService pivots attendance rows into the report tables.
type AggregateService struct {
	absentLabel    string
	presentLabel   string
	manualStatuses []string
}

// NewAggregateService constructs the aggregator. Empty labels fall back to Absent/Present.
func NewAggregateService(absentLabel, presentLabel string, manualStatuses []string) *AggregateService {
	if absentLabel == "" {
		absentLabel = models.DefaultAbsentStatus
	}
	if presentLabel == "" {
		presentLabel = models.DefaultPresentStatus
	}
	return &AggregateService{absentLabel: absentLabel, presentLabel: presentLabel, manualStatuses: manualStatuses}
}

// AbsentLabel returns the status treated as absent.
func (s *AggregateService) AbsentLabel() string {
	return s.absentLabel
}

type studentKey struct {
	id, name, grade string
	gradeNumber     int
}

// CumulativeSummary counts every status per student. Columns are the student key, each
// observed status ascending, then configured manual statuses that were not observed.
// Rows are ordered by absent count desc, Grade # desc, Student Id asc.
func (s *AggregateService) CumulativeSummary(rows []models.AttendanceRow) export.Table {
	counts := map[studentKey]map[string]int{}
	var keys []studentKey
	observed := map[string]struct{}{}
	for _, r := range rows {
		k := studentKey{id: r.StudentID, name: r.StudentName, grade: r.Grade, gradeNumber: r.GradeNumber}
		if counts[k] == nil {
			counts[k] = map[string]int{}
			keys = append(keys, k)
		}
		counts[k][r.Status]++
		observed[r.Status] = struct{}{}
	}

	statuses := make([]string, 0, len(observed))
	for st := range observed {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, manual := range s.manualStatuses {
		if _, ok := observed[manual]; ok {
			continue
		}
		observed[manual] = struct{}{}
		statuses = append(statuses, manual)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if ca, cb := counts[a][s.absentLabel], counts[b][s.absentLabel]; ca != cb {
			return ca > cb
		}
		if a.gradeNumber != b.gradeNumber {
			return a.gradeNumber > b.gradeNumber
		}
		if a.id != b.id {
			return a.id < b.id
		}
		return a.name < b.name
	})

	table := export.NewTable(append([]string{ColStudentID, ColStudentName, ColGrade, ColGradeNumber}, statuses...)...)
	for _, k := range keys {
		cells := []string{k.id, k.name, k.grade, strconv.Itoa(k.gradeNumber)}
		for _, st := range statuses {
			cells = append(cells, strconv.Itoa(counts[k][st]))
		}
		table.Append(cells...)
	}
	return table
}

// StatusBreakdown counts rows per status and grade with Total margins.
// Grade columns are ordered by Grade #.
func (s *AggregateService) StatusBreakdown(rows []models.AttendanceRow) export.Table {
	obs := make([]export.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, export.Observation{
			Index:  []string{r.Status},
			Column: export.Header{r.Grade, strconv.Itoa(r.GradeNumber)},
		})
	}
	return export.CountPivot(obs, export.CountPivotOptions{
		IndexNames: []string{ColStatus},
		SortLevel:  1,
		Show:       []int{0},
	})
}

// StatusByDateBreakdown counts rows per date and status across grades with Total margins.
// The homeroom view splits grades by advisor and labels columns "Grade/Advisor".
func (s *AggregateService) StatusByDateBreakdown(rows []models.AttendanceRow, scope models.Scope) export.Table {
	show := []int{0}
	if scope == models.ScopeHomeroom {
		show = []int{0, 2}
	}
	obs := make([]export.Observation, 0, len(rows))
	for _, r := range rows {
		header := export.Header{r.Grade, strconv.Itoa(r.GradeNumber)}
		if scope == models.ScopeHomeroom {
			header = append(header, r.HomeroomAdvisor)
		}
		obs = append(obs, export.Observation{
			Index:  []string{r.DateKey(), r.Status},
			Column: header,
		})
	}
	return export.CountPivot(obs, export.CountPivotOptions{
		IndexNames: []string{ColDate, ColStatus},
		SortLevel:  1,
		Show:       show,
	})
}

// AbsenceGrid shows the note of every absent row per student and date. Every student in rows
// gets a line; only dates with an absence get a column. An empty note is rendered as "Absent"
// in quotes and a date without an absence as "-".
func (s *AggregateService) AbsenceGrid(rows []models.AttendanceRow, scope models.Scope) export.Table {
	filtered := filterRows(rows, func(r models.AttendanceRow) bool { return r.Status == s.absentLabel })
	return studentDateGrid(rows, filtered, scope, missingMarker, func(r models.AttendanceRow) string {
		if r.Note == "" {
			return absentMarker
		}
		return r.Note
	})
}

// NonPresentGrid summarises every non-present row per student and date as status followed by
// the quoted note. Dates without such a row read as the present label.
func (s *AggregateService) NonPresentGrid(rows []models.AttendanceRow, scope models.Scope) export.Table {
	filtered := filterRows(rows, func(r models.AttendanceRow) bool { return r.Status != s.presentLabel })
	return studentDateGrid(rows, filtered, scope, s.presentLabel, func(r models.AttendanceRow) string {
		return r.Status + ` "` + r.Note + `"`
	})
}

// RawData lists the rows themselves ordered by date, student and period.
func RawData(rows []models.AttendanceRow, scope models.Scope) export.Table {
	sorted := sortedRows(rows)
	if scope == models.ScopeHomeroom {
		table := export.NewTable(ColStudentID, ColStudentName, ColYearGroup, ColHomeroomAdvisor, ColGrade, ColGradeNumber, ColProgram, ColDate, ColDay, ColStatus, ColNote)
		for _, r := range sorted {
			table.Append(r.StudentID, r.StudentName, r.YearGroup, r.HomeroomAdvisor, r.Grade, strconv.Itoa(r.GradeNumber), r.Program, r.DateKey(), r.Day, r.Status, r.Note)
		}
		return table
	}
	table := export.NewTable(ColStudentID, ColStudentName, ColClass, ColGrade, ColGradeNumber, ColProgram, ColDate, ColDay, ColPeriod, ColStatus, ColNote)
	for _, r := range sorted {
		table.Append(r.StudentID, r.StudentName, r.Class, r.Grade, strconv.Itoa(r.GradeNumber), r.Program, r.DateKey(), r.Day, r.Period, r.Status, r.Note)
	}
	return table
}

func studentDateGrid(roster, rows []models.AttendanceRow, scope models.Scope, missing string, value func(models.AttendanceRow) string) export.Table {
	names := []string{ColStudentID, ColStudentName, ColClass, ColGrade, ColGradeNumber}
	sortBy := []int{4, 1}
	index := func(r models.AttendanceRow) []string {
		return []string{r.StudentID, r.StudentName, r.Class, r.Grade, strconv.Itoa(r.GradeNumber)}
	}
	if scope == models.ScopeHomeroom {
		names = []string{ColStudentID, ColStudentName, ColGrade, ColGradeNumber, ColHomeroomAdvisor}
		sortBy = []int{3, 1}
		index = func(r models.AttendanceRow) []string {
			return []string{r.StudentID, r.StudentName, r.Grade, strconv.Itoa(r.GradeNumber), r.HomeroomAdvisor}
		}
	}

	obs := make([]export.Observation, 0, len(rows))
	for _, r := range sortedRows(rows) {
		obs = append(obs, export.Observation{
			Index:  index(r),
			Column: export.Header{r.DateKey()},
			Value:  value(r),
		})
	}
	students := make([][]string, 0, len(roster))
	for _, r := range roster {
		students = append(students, index(r))
	}
	return export.GridPivot(obs, export.GridOptions{
		IndexNames: names,
		SortBy:     sortBy,
		Roster:     students,
		Missing:    missing,
		Separator:  cellSeparator,
	})
}

func filterRows(rows []models.AttendanceRow, keep func(models.AttendanceRow) bool) []models.AttendanceRow {
	out := make([]models.AttendanceRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// sortedRows returns a copy ordered by date, student name, student id, class and period.
func sortedRows(rows []models.AttendanceRow) []models.AttendanceRow {
	out := append([]models.AttendanceRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return export.CompareValues(a.Period, b.Period) < 0
	})
	return out
}
