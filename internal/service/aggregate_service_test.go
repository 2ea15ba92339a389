package service

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/pkg/export"
)

func classRow(id, name string, grade int, class, day, status, note string) models.AttendanceRow {
	return models.AttendanceRow{
		StudentID:   id,
		StudentName: name,
		Grade:       "Grade " + strconv.Itoa(grade+1),
		GradeNumber: grade,
		Class:       class,
		Date:        date(day),
		Day:         date(day).Weekday().String(),
		Period:      "1",
		Status:      status,
		Note:        note,
	}
}

func homeroomRow(id, name string, grade int, advisor, day, status, note string) models.AttendanceRow {
	return models.AttendanceRow{
		StudentID:       id,
		StudentName:     name,
		Grade:           "Grade " + strconv.Itoa(grade+1),
		GradeNumber:     grade,
		YearGroup:       "G" + strconv.Itoa(grade+1),
		HomeroomAdvisor: advisor,
		Date:            date(day),
		Day:             date(day).Weekday().String(),
		Status:          status,
		Note:            note,
	}
}

func rowByFirst(t *testing.T, table export.Table, first string) []string {
	t.Helper()
	for _, row := range table.Rows {
		if row[0] == first {
			return row
		}
	}
	t.Fatalf("row %q not found", first)
	return nil
}

func TestCumulativeSummaryEmpty(t *testing.T) {
	agg := NewAggregateService("", "", []string{"Late"})
	table := agg.CumulativeSummary(nil)
	assert.True(t, table.Empty())
	assert.Equal(t, []string{ColStudentID, ColStudentName, ColGrade, ColGradeNumber, "Late"}, table.Columns)
}

func TestCumulativeSummaryCountsAndOrder(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s1", "Ada", 9, "Math", "2024-01-01", "Absent", ""),
		classRow("s1", "Ada", 9, "Math", "2024-01-02", "Present", ""),
		classRow("s2", "Ben", 11, "Math", "2024-01-01", "Present", ""),
		classRow("s2", "Ben", 11, "Math", "2024-01-02", "Tardy", ""),
		classRow("s3", "Cy", 10, "Math", "2024-01-01", "Absent", ""),
		classRow("s3", "Cy", 10, "Math", "2024-01-02", "Absent", "flu"),
	}
	agg := NewAggregateService("Absent", "Present", []string{"Tardy", "Excused"})
	table := agg.CumulativeSummary(rows)

	assert.Equal(t, []string{ColStudentID, ColStudentName, ColGrade, ColGradeNumber, "Absent", "Present", "Tardy", "Excused"}, table.Columns)
	assert.Equal(t, []string{"s3", "s1", "s2"}, table.Column(ColStudentID))

	perStudent := map[string]int{}
	for _, r := range rows {
		perStudent[r.StudentID]++
	}
	for i, row := range table.Rows {
		sum := 0
		for _, cell := range row[4:] {
			n, err := strconv.Atoi(cell)
			require.NoError(t, err)
			sum += n
		}
		assert.Equal(t, perStudent[row[0]], sum, "row %d", i)
	}
	assert.Equal(t, "0", table.Value(0, "Excused"))
}

func TestCumulativeSummaryTieBreaksOnGradeNumber(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s1", "Ada", 8, "Math", "2024-01-01", "Absent", ""),
		classRow("s2", "Ben", 11, "Math", "2024-01-01", "Absent", ""),
		classRow("s0", "Ann", 11, "Math", "2024-01-01", "Absent", ""),
	}
	table := NewAggregateService("", "", nil).CumulativeSummary(rows)
	assert.Equal(t, []string{"s0", "s2", "s1"}, table.Column(ColStudentID))
}

func TestStatusBreakdownMargins(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s1", "Ada", 9, "Math", "2024-01-01", "Present", ""),
		classRow("s2", "Ben", 10, "Math", "2024-01-01", "Absent", ""),
		classRow("s3", "Cy", 10, "Math", "2024-01-01", "Present", ""),
	}
	table := NewAggregateService("", "", nil).StatusBreakdown(rows)

	assert.Equal(t, []string{ColStatus, "Grade 10", "Grade 11", "Total"}, table.Columns)
	assert.Equal(t, []string{"Absent", "Present", "Total"}, table.Column(ColStatus))
	assert.Equal(t, []string{"Present", "1", "1", "2"}, table.Rows[1])
	assert.Equal(t, []string{"Total", "1", "2", "3"}, table.Rows[2])
}

func TestStatusByDateBreakdownHomeroomColumns(t *testing.T) {
	rows := []models.AttendanceRow{
		homeroomRow("s1", "Ada", 10, "Ms Lee", "2024-01-02", "Absent", ""),
		homeroomRow("s2", "Ben", 9, "Mr Ode", "2024-01-01", "Present", ""),
		homeroomRow("s3", "Cy", 9, "Mr Ode", "2024-01-02", "Present", ""),
	}
	table := NewAggregateService("", "", nil).StatusByDateBreakdown(rows, models.ScopeHomeroom)

	assert.Equal(t, []string{ColDate, ColStatus, "Grade 10/Mr Ode", "Grade 11/Ms Lee", "Total"}, table.Columns)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"2024-01-01", "Present", "1", "0", "1"}, table.Rows[0])
	assert.Equal(t, []string{"2024-01-02", "Absent", "0", "1", "1"}, table.Rows[1])
	assert.Equal(t, []string{"Total", "", "2", "1", "3"}, table.Rows[3])
}

func TestAbsenceGridMarkers(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s1", "Ada", 9, "Math", "2024-01-01", "Absent", ""),
		classRow("s1", "Ada", 9, "Math", "2024-01-02", "Present", ""),
		classRow("s2", "Ben", 9, "Math", "2024-01-02", "Absent", "dentist"),
	}
	table := NewAggregateService("", "", nil).AbsenceGrid(rows, models.ScopeClass)

	assert.Equal(t, []string{ColStudentID, ColStudentName, ColClass, ColGrade, ColGradeNumber, "2024-01-01", "2024-01-02"}, table.Columns)
	ada := rowByFirst(t, table, "s1")
	assert.Equal(t, `"Absent"`, ada[5])
	assert.Equal(t, "-", ada[6])
	ben := rowByFirst(t, table, "s2")
	assert.Equal(t, "-", ben[5])
	assert.Equal(t, "dentist", ben[6])
}

func TestAbsenceGridSortsByGradeThenName(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s1", "Zoe", 8, "Math", "2024-01-01", "Absent", ""),
		classRow("s2", "Amy", 10, "Math", "2024-01-01", "Absent", ""),
		classRow("s3", "Bea", 8, "Math", "2024-01-01", "Absent", ""),
	}
	table := NewAggregateService("", "", nil).AbsenceGrid(rows, models.ScopeClass)
	assert.Equal(t, []string{"Bea", "Zoe", "Amy"}, table.Column(ColStudentName))
}

func TestAbsenceGridJoinsSameDayPeriods(t *testing.T) {
	first := classRow("s1", "Ada", 9, "Math", "2024-01-01", "Absent", "late bus")
	second := first
	second.Period = "2"
	second.Note = "nurse"
	table := NewAggregateService("", "", nil).AbsenceGrid([]models.AttendanceRow{second, first}, models.ScopeClass)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "late bus; nurse", table.Rows[0][5])
}

func TestNonPresentGrid(t *testing.T) {
	rows := []models.AttendanceRow{
		homeroomRow("s1", "Ada", 9, "Ms Lee", "2024-01-01", "Tardy", ""),
		homeroomRow("s1", "Ada", 9, "Ms Lee", "2024-01-02", "Absent", "flu"),
		homeroomRow("s2", "Ben", 9, "Ms Lee", "2024-01-01", "Present", ""),
	}
	table := NewAggregateService("", "", nil).NonPresentGrid(rows, models.ScopeHomeroom)

	assert.Equal(t, []string{ColStudentID, ColStudentName, ColGrade, ColGradeNumber, ColHomeroomAdvisor, "2024-01-01", "2024-01-02"}, table.Columns)
	ada := rowByFirst(t, table, "s1")
	assert.Equal(t, `Tardy ""`, ada[5])
	assert.Equal(t, `Absent "flu"`, ada[6])
	ben := rowByFirst(t, table, "s2")
	assert.Equal(t, []string{"Present", "Present"}, ben[5:])
}

func TestGridsDegradeOnEmptyInput(t *testing.T) {
	agg := NewAggregateService("", "", nil)
	assert.True(t, agg.AbsenceGrid(nil, models.ScopeClass).Empty())
	assert.True(t, agg.NonPresentGrid(nil, models.ScopeHomeroom).Empty())
	assert.True(t, agg.StatusBreakdown(nil).Empty())
	assert.True(t, agg.StatusByDateBreakdown(nil, models.ScopeClass).Empty())
}

func TestRawDataColumns(t *testing.T) {
	rows := []models.AttendanceRow{
		classRow("s2", "Ben", 9, "Math", "2024-01-02", "Present", ""),
		classRow("s1", "Ada", 9, "Math", "2024-01-01", "Absent", "flu"),
	}
	table := RawData(rows, models.ScopeClass)
	assert.Equal(t, []string{ColStudentID, ColStudentName, ColClass, ColGrade, ColGradeNumber, ColProgram, ColDate, ColDay, ColPeriod, ColStatus, ColNote}, table.Columns)
	assert.Equal(t, []string{"s1", "s2"}, table.Column(ColStudentID))
	assert.Equal(t, "Monday", table.Value(0, ColDay))

	hr := RawData([]models.AttendanceRow{homeroomRow("s1", "Ada", 9, "Ms Lee", "2024-01-01", "Present", "")}, models.ScopeHomeroom)
	assert.Equal(t, "Ms Lee", hr.Value(0, ColHomeroomAdvisor))
}

func TestEndToEndWeekOfClassAttendance(t *testing.T) {
	calendar := BuildCalendar(date("2024-01-01"), date("2024-01-07"), models.WorkWeekMonFri)
	schoolDays := SchoolDays(calendar)
	require.Len(t, schoolDays, 5)

	var rows []models.AttendanceRow
	for _, student := range []string{"S1", "S2", "S3"} {
		for i, d := range schoolDays {
			status, note := "Present", ""
			if student == "S1" && i == 2 {
				status, note = "Absent", "flu"
			}
			rows = append(rows, classRow(student, "Name "+student, 9, "Math", d.Key(), status, note))
		}
	}

	agg := NewAggregateService("Absent", "Present", nil)
	summary := agg.CumulativeSummary(rows)
	s1 := rowByFirst(t, summary, "S1")
	assert.Equal(t, "1", s1[summary.Index("Absent")])
	assert.Equal(t, "4", s1[summary.Index("Present")])

	grid := agg.AbsenceGrid(rows, models.ScopeClass)
	require.Len(t, grid.Columns, 6)
	assert.Equal(t, "2024-01-03", grid.Columns[5])
	assert.Equal(t, "flu", rowByFirst(t, grid, "S1")[5])
	assert.Equal(t, "-", rowByFirst(t, grid, "S2")[5])
	assert.Equal(t, "-", rowByFirst(t, grid, "S3")[5])
}
