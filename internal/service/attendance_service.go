package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, query models.AttendanceQuery) ([]models.AttendanceRecord, error)
}

// AttendanceService turns store records into normalised attendance rows for a calendar.
type AttendanceService struct {
	repo    attendanceRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAttendanceService constructs the fetcher. cache and metrics may be nil.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Fetch returns the rows of scope dated on school days of calendar within rng.
// Rows dated on non-school days are dropped even when the store returns them.
func (s *AttendanceService) Fetch(ctx context.Context, scope models.Scope, rng models.DateRange, calendar []models.CalendarDay, weekends []int) ([]models.AttendanceRow, error) {
	schoolDays := SchoolDays(calendar)
	query := models.AttendanceQuery{
		Scope:      scope,
		StartDate:  rng.Start,
		EndDate:    rng.End,
		SchoolDays: make([]time.Time, len(schoolDays)),
		Weekends:   weekends,
	}
	for i, d := range schoolDays {
		query.SchoolDays[i] = d.Date
	}

	key := AttendanceCacheKey(query)
	var cached []models.AttendanceRow
	if s.cache.Get(ctx, key, &cached) {
		s.logger.Debug("attendance cache hit", zap.String("key", key), zap.Int("rows", len(cached)))
		return cached, nil
	}

	start := time.Now()
	records, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.ExitCode, appErrors.ErrStore.Message)
	}
	rows := normalise(records, schoolDays)
	s.metrics.ObserveQuery(string(scope), len(rows), time.Since(start))

	if dropped := len(records) - len(rows); dropped > 0 {
		s.logger.Warn("dropped attendance outside school days", zap.String("scope", string(scope)), zap.Int("rows", dropped))
	}
	s.cache.Set(ctx, key, rows, 0)
	return rows, nil
}

func normalise(records []models.AttendanceRecord, schoolDays []models.CalendarDay) []models.AttendanceRow {
	byKey := make(map[string]models.CalendarDay, len(schoolDays))
	for _, d := range schoolDays {
		byKey[d.Key()] = d
	}

	rows := make([]models.AttendanceRow, 0, len(records))
	for _, rec := range records {
		day, ok := byKey[rec.Date.Format(models.DateLayout)]
		if !ok {
			continue
		}
		rows = append(rows, models.AttendanceRow{
			StudentID:       rec.StudentID,
			StudentName:     rec.StudentName,
			Grade:           deref(rec.Grade),
			GradeNumber:     rec.GradeNumber - 1,
			Program:         deref(rec.Program),
			Class:           deref(rec.Class),
			YearGroup:       deref(rec.YearGroup),
			HomeroomAdvisor: deref(rec.HomeroomAdvisor),
			Date:            day.Date,
			Day:             day.Day,
			Period:          deref(rec.Period),
			Status:          rec.Status,
			Note:            deref(rec.Note),
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
