package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-attendance-report/internal/models"
)

const classAttendanceQuery = `
SELECT
	s.student_id AS student_id,
	s.display_name AS student_name,
	s.class_grade AS grade,
	s.class_grade_number AS grade_number,
	c.program_code AS program,
	c.name AS class_name,
	a.date AS date,
	a.period AS period,
	a.status AS status,
	a.note AS note
FROM class_attendance_by_date a
JOIN students s ON s.id = a.student_id
JOIN classes c ON c.id = a.class_id
JOIN memberships m ON m.class_id = a.class_id AND m.user_id = a.student_id
WHERE a.status IS NOT NULL
	AND m.deleted_at IS NULL
	AND c.archived = FALSE
	AND a.date >= $1
	AND a.date <= $2
	AND a.date = ANY($3::date[])`

const homeroomAttendanceQuery = `
SELECT
	s.student_id AS student_id,
	s.display_name AS student_name,
	s.class_grade AS grade,
	s.class_grade_number AS grade_number,
	yg.program AS program,
	yg.name AS year_group,
	t.full_name AS homeroom_advisor,
	a.date AS date,
	a.status AS status,
	a.note AS note
FROM hr_attendance_by_date a
JOIN students s ON s.id = a.student_id
JOIN year_groups yg ON yg.id = a.year_group_id AND yg.id = s.year_group_id
JOIN teachers t ON t.id = s.homeroom_advisor_id
WHERE a.status IS NOT NULL
	AND s.deleted_at IS NULL
	AND yg.archived = FALSE
	AND a.date >= $1
	AND a.date <= $2
	AND a.date = ANY($3::date[])`

// AttendanceRepository reads homeroom and class attendance events.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns raw attendance records for the query scope restricted to its school days.
// An empty school-day set short-circuits without touching the database.
func (r *AttendanceRepository) List(ctx context.Context, query models.AttendanceQuery) ([]models.AttendanceRecord, error) {
	var stmt string
	switch query.Scope {
	case models.ScopeClass:
		stmt = classAttendanceQuery
	case models.ScopeHomeroom:
		stmt = homeroomAttendanceQuery
	default:
		return nil, fmt.Errorf("unsupported attendance scope %q", query.Scope)
	}
	if len(query.SchoolDays) == 0 {
		return []models.AttendanceRecord{}, nil
	}

	args := []interface{}{
		query.StartDate.Format(models.DateLayout),
		query.EndDate.Format(models.DateLayout),
		pq.Array(dateKeys(query.SchoolDays)),
	}

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, stmt, args...); err != nil {
		return nil, fmt.Errorf("list %s attendance: %w", query.Scope, err)
	}
	return records, nil
}

func dateKeys(days []time.Time) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = d.Format(models.DateLayout)
	}
	return keys
}
