package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
	"github.com/noah-isme/sma-attendance-report/pkg/jobs"
	"github.com/noah-isme/sma-attendance-report/pkg/mail"
)

// DispatchRequest describes where and how a set of report tables is delivered.
type DispatchRequest struct {
	RunID        string
	Kind         models.ReportKind
	Scope        models.ReportScope
	Range        models.DateRange
	Format       models.ReportFormat
	From         string
	To           []string
	Subject      string
	Body         string
	TemplatePath string
}

// BodyData is the value handed to body templates.
type BodyData struct {
	StartDate string
	EndDate   string
	Scope     string
	Kind      string
	Labels    []string
}

// DispatchService ships report tables to the console or by mail.
type DispatchService struct {
	sender  mail.Sender
	exports *ExportService
	console io.Writer
	metrics *MetricsService
	logger  *zap.Logger

	retries    int
	retryDelay time.Duration
}

// NewDispatchService constructs the dispatcher. A nil console writes to stdout.
func NewDispatchService(sender mail.Sender, exports *ExportService, console io.Writer, metrics *MetricsService, logger *zap.Logger) *DispatchService {
	if console == nil {
		console = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exports == nil {
		exports = NewExportService(nil, 0, logger, nil, nil, nil)
	}
	return &DispatchService{sender: sender, exports: exports, console: console, metrics: metrics, logger: logger}
}

// WithRetry makes mail delivery retry up to retries more times, waiting delay between attempts.
func (s *DispatchService) WithRetry(retries int, delay time.Duration) *DispatchService {
	s.retries = retries
	s.retryDelay = delay
	return s
}

// Dispatch prints every table when there are no recipients, otherwise mails them as
// attachments. Rendered files are also persisted when storage is configured.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest, attachments []models.Attachment) error {
	if len(req.To) == 0 {
		return s.toConsole(req, attachments)
	}

	files := make([]RenderedFile, 0, len(attachments))
	for _, att := range attachments {
		f, err := s.exports.Render(att, req.Format)
		if err != nil {
			return dispatchError(err)
		}
		files = append(files, f)
	}
	if _, err := s.exports.Persist(req.Kind, req.Range.End, files); err != nil {
		return dispatchError(err)
	}

	body, err := s.body(req, attachments)
	if err != nil {
		return dispatchError(err)
	}
	msg := &mail.Message{From: req.From, To: req.To, Subject: req.Subject, Body: body}
	for _, f := range files {
		msg.Attach(f.Filename, f.ContentType, f.Data)
	}
	if s.sender == nil {
		return dispatchError(fmt.Errorf("no mail transport configured"))
	}
	delivery := jobs.NewQueue("mail", func(ctx context.Context, _ jobs.Job) error {
		return s.sender.Send(ctx, msg)
	}, jobs.QueueConfig{MaxRetries: s.retries, RetryDelay: s.retryDelay, Logger: s.logger})
	if err := delivery.Run(ctx, jobs.Job{ID: req.RunID, Type: string(req.Kind), Payload: msg}); err != nil {
		return dispatchError(err)
	}

	for _, f := range files {
		s.metrics.RecordAttachment(string(req.Kind), string(f.Format))
	}
	s.logger.Sugar().Infow("report mailed",
		"recipients", len(req.To),
		"attachments", len(files),
		"start", req.Range.Start.Format(models.DateLayout),
		"end", req.Range.End.Format(models.DateLayout),
	)
	return nil
}

func (s *DispatchService) toConsole(req DispatchRequest, attachments []models.Attachment) error {
	files := make([]RenderedFile, 0, len(attachments))
	for _, att := range attachments {
		text, err := s.exports.RenderText(att)
		if err != nil {
			return dispatchError(err)
		}
		if _, err := fmt.Fprintf(s.console, "%s\n", text); err != nil {
			return dispatchError(err)
		}
		s.metrics.RecordAttachment(string(req.Kind), "text")

		if s.exports.storage == nil {
			continue
		}
		f, err := s.exports.Render(att, req.Format)
		if err != nil {
			return dispatchError(err)
		}
		files = append(files, f)
	}
	saved, err := s.exports.Persist(req.Kind, req.Range.End, files)
	if err != nil {
		return dispatchError(err)
	}
	s.logger.Sugar().Infow("report printed", "tables", len(attachments), "saved", len(saved))
	return nil
}

func (s *DispatchService) body(req DispatchRequest, attachments []models.Attachment) (string, error) {
	if req.Body != "" || req.TemplatePath == "" {
		return req.Body, nil
	}
	data := BodyData{
		StartDate: req.Range.Start.Format(models.DateLayout),
		EndDate:   req.Range.End.Format(models.DateLayout),
		Scope:     string(req.Scope),
		Kind:      string(req.Kind),
	}
	for _, att := range attachments {
		data.Labels = append(data.Labels, att.Label)
	}
	return mail.RenderTemplate(req.TemplatePath, data)
}

func dispatchError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrDispatch.Code, appErrors.ErrDispatch.ExitCode, appErrors.ErrDispatch.Message)
}
