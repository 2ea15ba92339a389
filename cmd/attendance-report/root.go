package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/dto"
	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/internal/repository"
	"github.com/noah-isme/sma-attendance-report/internal/service"
	"github.com/noah-isme/sma-attendance-report/pkg/cache"
	"github.com/noah-isme/sma-attendance-report/pkg/config"
	"github.com/noah-isme/sma-attendance-report/pkg/database"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
	"github.com/noah-isme/sma-attendance-report/pkg/logger"
	"github.com/noah-isme/sma-attendance-report/pkg/mail"
	"github.com/noah-isme/sma-attendance-report/pkg/storage"
)

// runFlags collects the options shared by every report command. Empty values fall back to
// the environment configuration.
type runFlags struct {
	scope          string
	date           string
	workWeek       string
	doImport       bool
	skipImport     bool
	absentCategory string
	manualStatuses []string
	format         string
	outputDir      string

	from     string
	to       []string
	host     string
	port     int
	subject  string
	body     string
	password string
	tls      bool
	template string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "attendance-report",
		Short:         "Cumulative homeroom and class attendance reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newReportCmd(models.ReportKindHomeroom, "Cumulative homeroom attendance"),
		newReportCmd(models.ReportKindClass, "Cumulative class attendance"),
		newReportCmd(models.ReportKindCombo, "Homeroom and class attendance combined"),
	)
	return root
}

func newReportCmd(kind models.ReportKind, short string) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, kind, flags)
		},
	}
	bindFlags(cmd, flags)
	return cmd
}

func bindFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.scope, "scope", "s", string(models.ReportScopeWeekly), "Report window: weekly, monthly or daily")
	fs.StringVarP(&f.date, "date", "d", "", "Anchor date (YYYY-MM-DD), defaults to today")
	fs.StringVarP(&f.workWeek, "work-week", "w", "", "School week convention: mon-fri or sun-thurs")
	fs.BoolVarP(&f.doImport, "import", "i", true, "Run the attendance import before reporting")
	fs.BoolVar(&f.skipImport, "skip-import", false, "Skip the attendance import")
	fs.StringVar(&f.absentCategory, "absent-category-name", "", "Status treated as absent")
	fs.StringArrayVar(&f.manualStatuses, "manual-status", nil, "Status column always present in the cumulative summary (repeatable)")
	fs.StringVar(&f.format, "format", "", "Attachment format: csv, xlsx or pdf")
	fs.StringVar(&f.outputDir, "output-dir", "", "Also write rendered attachments under this directory")

	fs.StringVar(&f.from, "from", "", "Sender address")
	fs.StringArrayVar(&f.to, "to", nil, "Recipient address (repeatable); without recipients tables are printed")
	fs.StringVar(&f.host, "host", "", "SMTP host")
	fs.IntVar(&f.port, "port", 0, "SMTP port")
	fs.StringVar(&f.subject, "subject", "", "Mail subject")
	fs.StringVar(&f.body, "body", "", "Mail body text")
	fs.StringVar(&f.password, "password", "", "SMTP password")
	fs.BoolVar(&f.tls, "tls", false, "Use implicit TLS for SMTP")
	fs.StringVar(&f.template, "template", "", "Path to a text/template file for the mail body")
}

// buildRunRequest merges flags over configuration. Flags win when set.
func buildRunRequest(kind models.ReportKind, f *runFlags, cfg *config.Config) dto.RunRequest {
	manual := f.manualStatuses
	if len(manual) == 0 {
		manual = cfg.Reports.ManualStatuses
	}
	subject := firstNonEmpty(f.subject, cfg.SMTP.Subject)
	if cfg.Mail.Transport != config.MailTransportSendGrid && cfg.Mail.SubjectPrefix != "" {
		subject = cfg.Mail.SubjectPrefix + " " + subject
	}
	return dto.RunRequest{
		Kind:            string(kind),
		Scope:           strings.ToLower(f.scope),
		Date:            f.date,
		WorkWeek:        firstNonEmpty(f.workWeek, cfg.Reports.WorkWeek),
		Import:          f.doImport && !f.skipImport,
		AbsentCategory:  firstNonEmpty(f.absentCategory, cfg.Reports.AbsentCategory, models.DefaultAbsentStatus),
		PresentCategory: firstNonEmpty(cfg.Reports.PresentCategory, models.DefaultPresentStatus),
		ManualStatuses:  manual,
		Format:          strings.ToLower(firstNonEmpty(f.format, cfg.Reports.Format)),
		From:            firstNonEmpty(f.from, cfg.SMTP.From),
		To:              f.to,
		Subject:         subject,
		Body:            f.body,
		TemplatePath:    f.template,
	}
}

// smtpSettings resolves the relay settings, letting flags override MBPY_SMTP_* values.
func smtpSettings(cmd *cobra.Command, f *runFlags, cfg *config.Config) mail.SMTPConfig {
	port := cfg.SMTP.Port
	if cmd.Flags().Changed("port") {
		port = f.port
	}
	implicitTLS := cfg.SMTP.TLS
	if cmd.Flags().Changed("tls") {
		implicitTLS = f.tls
	}
	return mail.SMTPConfig{
		Host:        firstNonEmpty(f.host, cfg.SMTP.Host),
		Port:        port,
		Username:    firstNonEmpty(f.from, cfg.SMTP.From),
		Password:    firstNonEmpty(f.password, cfg.SMTP.Password),
		ImplicitTLS: implicitTLS,
	}
}

func newSender(cmd *cobra.Command, f *runFlags, cfg *config.Config) mail.Sender {
	if cfg.Mail.Transport == config.MailTransportSendGrid {
		return mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, "", cfg.Mail.SubjectPrefix)
	}
	return mail.NewSMTPSender(smtpSettings(cmd, f, cfg))
}

func runReport(cmd *cobra.Command, kind models.ReportKind, f *runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.ExitCode, "failed to load config")
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.ExitCode, "failed to init logger")
	}
	defer logr.Sync() //nolint:errcheck

	req := buildRunRequest(kind, f, cfg)
	if _, _, err := service.CheckConfiguration(req); err != nil {
		return err
	}
	metrics := service.NewMetricsService()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.ExitCode, "failed to connect to attendance store")
	}
	defer db.Close()

	cacheSvc, closeCache := newCacheService(ctx, cfg, metrics, logr)
	defer closeCache()
	attendance := service.NewAttendanceService(repository.NewAttendanceRepository(db), cacheSvc, metrics, logr)
	importer := service.NewImportService(cfg.Reports.ImportCommand, cfg.Reports.ImportTimeout, cacheSvc, logr)

	exports, err := newExportService(f, cfg, logr)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.ExitCode, "failed to prepare output directory")
	}
	var sender mail.Sender
	if len(req.To) > 0 {
		sender = newSender(cmd, f, cfg)
	}
	dispatcher := service.NewDispatchService(sender, exports, cmd.OutOrStdout(), metrics, logr).
		WithRetry(cfg.Mail.Retries, cfg.Mail.RetryDelay)

	runner := service.NewReportService(attendance, importer, dispatcher, metrics, nil, logr, service.ReportServiceConfig{
		MetricsTextfile: cfg.Metrics.TextfilePath,
	})
	result, err := runner.Run(ctx, req)
	if err != nil {
		logr.Error("report run failed", zap.String("report", string(kind)), zap.Error(err))
		return err
	}
	logr.Sugar().Infow("report complete", "run_id", result.RunID, "rows", result.Rows, "dispatched", result.Dispatched)
	return nil
}

func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	noop := func() {}
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false), noop
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, attendance cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false), noop
	}
	repo := repository.NewCacheRepository(client, logr)
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true), func() { _ = repo.Close() }
}

func newExportService(f *runFlags, cfg *config.Config, logr *zap.Logger) (*service.ExportService, error) {
	dir := firstNonEmpty(f.outputDir, cfg.Reports.OutputDir)
	if dir == "" {
		return service.NewExportService(nil, 0, logr, nil, nil, nil), nil
	}
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return service.NewExportService(store, cfg.Reports.Retention, logr, nil, nil, nil), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
