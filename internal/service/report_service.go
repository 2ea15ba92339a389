package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/dto"
	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
	"github.com/noah-isme/sma-attendance-report/pkg/logger"
)

// Attachment labels of the homeroom and class reports.
const (
	LabelCumulativeAbsences = "cumulative_absences"
	LabelNotPresent         = "not_present"
	LabelNonPresents        = "non_presents"
	LabelStatusBreakdown    = "status_breakdown"
	LabelAbsentDays         = "absent_days"
	LabelRawData            = "raw_data"
	LabelStatusCounts       = "status_counts"
)

type attendanceFetcher interface {
	Fetch(ctx context.Context, scope models.Scope, rng models.DateRange, calendar []models.CalendarDay, weekends []int) ([]models.AttendanceRow, error)
}

type attendanceImporter interface {
	Run(ctx context.Context, req ImportRequest) error
}

type reportDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest, attachments []models.Attachment) error
}

// ReportServiceConfig carries run-independent settings.
type ReportServiceConfig struct {
	MetricsTextfile string
	// Now returns the anchor used when a request has no date.
	Now func() time.Time
}

// RunResult summarises one report run.
type RunResult struct {
	RunID       string
	Range       models.DateRange
	Rows        int
	Attachments []string
	Dispatched  bool
}

// ReportService runs a report end to end: import, calendar, fetch, aggregate, dispatch.
type ReportService struct {
	fetcher    attendanceFetcher
	importer   attendanceImporter
	dispatcher reportDispatcher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ReportServiceConfig
}

// NewReportService constructs the report runner.
func NewReportService(fetcher attendanceFetcher, importer attendanceImporter, dispatcher reportDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	svc := &ReportService{
		fetcher:    fetcher,
		importer:   importer,
		dispatcher: dispatcher,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
	svc.validator.RegisterValidation("report_format", func(fl validator.FieldLevel) bool {
		return models.ReportFormat(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// ResolveRange returns the reporting window ending on end for the given scope.
func ResolveRange(scope models.ReportScope, ww models.WorkWeek, end time.Time) (models.DateRange, error) {
	end = models.TruncateDay(end)
	switch scope {
	case models.ReportScopeWeekly:
		return models.DateRange{Start: ww.FirstDayOfWeek(end), End: end}, nil
	case models.ReportScopeMonthly:
		return models.DateRange{Start: time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location()), End: end}, nil
	case models.ReportScopeDaily:
		return models.DateRange{Start: end, End: end}, nil
	default:
		return models.DateRange{}, appErrors.Clone(appErrors.ErrNotImplemented, fmt.Sprintf("scope %q is not implemented", scope))
	}
}

// CheckConfiguration resolves the work week and scope of req. Callers run it before opening
// any store connection so configuration mistakes are reported as such.
func CheckConfiguration(req dto.RunRequest) (models.WorkWeek, models.ReportScope, error) {
	ww, err := models.ParseWorkWeek(req.WorkWeek)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrInvalidConfiguration, err.Error())
	}
	scope := models.ReportScope(req.Scope)
	if !scope.Valid() {
		return "", "", appErrors.Clone(appErrors.ErrNotImplemented, fmt.Sprintf("scope %q is not implemented", req.Scope))
	}
	return ww, scope, nil
}

// Run executes one report. Configuration problems fail before any import or query.
func (s *ReportService) Run(ctx context.Context, req dto.RunRequest) (result *RunResult, err error) {
	ww, scope, err := CheckConfiguration(req)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.ExitCode, appErrors.ErrValidation.Message)
	}
	if len(req.To) > 0 && req.From == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a sender address is required when recipients are given")
	}

	anchor := s.cfg.Now()
	if req.Date != "" {
		anchor, err = time.ParseInLocation(models.DateLayout, req.Date, time.Local)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", req.Date))
		}
	}
	rng, err := ResolveRange(scope, ww, anchor)
	if err != nil {
		return nil, err
	}

	kind := models.ReportKind(req.Kind)
	result = &RunResult{RunID: uuid.NewString(), Range: rng}
	log := logger.WithRun(s.logger, result.RunID, req.Kind)
	started := time.Now()
	defer func() {
		s.metrics.ObserveRun(req.Kind, req.Scope, err, time.Since(started))
		if path := s.cfg.MetricsTextfile; path != "" {
			if writeErr := s.metrics.WriteTextfile(path); writeErr != nil {
				log.Warn("metrics textfile write failed", zap.String("path", path), zap.Error(writeErr))
			}
		}
	}()

	log.Sugar().Infow("report run started",
		"scope", scope,
		"start", rng.Start.Format(models.DateLayout),
		"end", rng.End.Format(models.DateLayout),
		"work_week", ww,
	)

	scopes := scopesFor(kind)
	weekends := ww.WeekendDays()
	if req.Import && s.importer != nil {
		for _, sc := range scopes {
			if err := s.importer.Run(ctx, ImportRequest{Scope: sc, Range: rng, Weekends: weekends}); err != nil {
				return result, err
			}
		}
	}

	calendar := BuildCalendar(rng.Start, rng.End, ww)
	fetched := make(map[models.Scope][]models.AttendanceRow, len(scopes))
	for _, sc := range scopes {
		rows, err := s.fetcher.Fetch(ctx, sc, rng, calendar, weekends)
		if err != nil {
			return result, err
		}
		fetched[sc] = rows
		result.Rows += len(rows)
	}
	if result.Rows == 0 {
		log.Info("no records")
		return result, nil
	}

	var attachments []models.Attachment
	switch kind {
	case models.ReportKindHomeroom:
		agg := NewAggregateService(req.AbsentCategory, req.PresentCategory, req.ManualStatuses)
		attachments = HomeroomAttachments(agg, fetched[models.ScopeHomeroom])
	case models.ReportKindClass:
		agg := NewAggregateService(req.AbsentCategory, req.PresentCategory, req.ManualStatuses)
		attachments = ClassAttachments(agg, fetched[models.ScopeClass])
	case models.ReportKindCombo:
		rec := NewReconcileService(req.AbsentCategory).Reconcile(fetched[models.ScopeHomeroom], fetched[models.ScopeClass])
		attachments = rec.Attachments()
	}
	for _, att := range attachments {
		result.Attachments = append(result.Attachments, att.Label)
	}

	dispatch := DispatchRequest{
		RunID:        result.RunID,
		Kind:         kind,
		Scope:        scope,
		Range:        rng,
		Format:       models.ReportFormat(strings.ToLower(req.Format)),
		From:         req.From,
		To:           req.To,
		Subject:      req.Subject,
		Body:         req.Body,
		TemplatePath: req.TemplatePath,
	}
	if err := s.dispatcher.Dispatch(ctx, dispatch, attachments); err != nil {
		return result, err
	}
	result.Dispatched = true
	log.Sugar().Infow("report run finished", "rows", result.Rows, "attachments", len(attachments), "duration", time.Since(started))
	return result, nil
}

// HomeroomAttachments builds the homeroom report tables in dispatch order.
func HomeroomAttachments(agg *AggregateService, rows []models.AttendanceRow) []models.Attachment {
	return []models.Attachment{
		{Label: LabelCumulativeAbsences, Table: agg.CumulativeSummary(rows)},
		{Label: LabelNotPresent, Table: agg.NonPresentGrid(rows, models.ScopeHomeroom)},
		{Label: LabelStatusBreakdown, Table: agg.StatusByDateBreakdown(rows, models.ScopeHomeroom)},
		{Label: LabelAbsentDays, Table: agg.AbsenceGrid(rows, models.ScopeHomeroom)},
		{Label: LabelStatusCounts, Table: agg.StatusBreakdown(rows)},
	}
}

// ClassAttachments builds the class report tables in dispatch order.
func ClassAttachments(agg *AggregateService, rows []models.AttendanceRow) []models.Attachment {
	return []models.Attachment{
		{Label: LabelCumulativeAbsences, Table: agg.CumulativeSummary(rows)},
		{Label: LabelNonPresents, Table: agg.NonPresentGrid(rows, models.ScopeClass)},
		{Label: LabelStatusBreakdown, Table: agg.StatusByDateBreakdown(rows, models.ScopeClass)},
		{Label: LabelAbsentDays, Table: agg.AbsenceGrid(rows, models.ScopeClass)},
		{Label: LabelRawData, Hint: string(models.ReportFormatCSV), Table: RawData(rows, models.ScopeClass)},
		{Label: LabelStatusCounts, Table: agg.StatusBreakdown(rows)},
	}
}

func scopesFor(kind models.ReportKind) []models.Scope {
	switch kind {
	case models.ReportKindHomeroom:
		return []models.Scope{models.ScopeHomeroom}
	case models.ReportKindClass:
		return []models.Scope{models.ScopeClass}
	default:
		return []models.Scope{models.ScopeHomeroom, models.ScopeClass}
	}
}
