package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/pkg/export"
)

var contentTypes = map[models.ReportFormat]string{
	models.ReportFormatCSV:  "text/csv",
	models.ReportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	models.ReportFormatPDF:  "application/pdf",
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Table, title string) ([]byte, error)
}

// RenderedFile is one attachment encoded for delivery.
type RenderedFile struct {
	Label       string
	Filename    string
	ContentType string
	Format      models.ReportFormat
	Data        []byte
}

// ExportService encodes report tables and optionally keeps a copy on disk.
type ExportService struct {
	storage   fileStorage
	retention time.Duration
	csv       csvRenderer
	xlsx      titledRenderer
	pdf       titledRenderer
	text      titledRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. storage may be nil; nil renderers get defaults.
func NewExportService(storage fileStorage, retention time.Duration, logger *zap.Logger, csv csvRenderer, xlsx, pdf titledRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage:   storage,
		retention: retention,
		csv:       csv,
		xlsx:      xlsx,
		pdf:       pdf,
		text:      export.NewTextExporter(),
		logger:    logger,
	}
}

// ResolveFormat picks the attachment hint when it names a format, then the run format, then csv.
func ResolveFormat(hint string, runFormat models.ReportFormat) models.ReportFormat {
	if f := models.ReportFormat(strings.ToLower(hint)); f.Valid() {
		return f
	}
	if runFormat.Valid() {
		return runFormat
	}
	return models.ReportFormatCSV
}

// Render encodes one attachment in its resolved format.
func (s *ExportService) Render(att models.Attachment, runFormat models.ReportFormat) (RenderedFile, error) {
	format := ResolveFormat(att.Hint, runFormat)
	var (
		data []byte
		err  error
	)
	switch format {
	case models.ReportFormatCSV:
		data, err = s.csv.Render(att.Table)
	case models.ReportFormatXLSX:
		data, err = s.xlsx.Render(att.Table, att.Label)
	case models.ReportFormatPDF:
		data, err = s.pdf.Render(att.Table, strings.ReplaceAll(att.Label, "_", " "))
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return RenderedFile{}, fmt.Errorf("render %s: %w", att.Label, err)
	}
	return RenderedFile{
		Label:       att.Label,
		Filename:    fmt.Sprintf("%s.%s", sanitizeFilename(att.Label), format),
		ContentType: contentTypes[format],
		Format:      format,
		Data:        data,
	}, nil
}

// RenderText renders an attachment for the console sink.
func (s *ExportService) RenderText(att models.Attachment) ([]byte, error) {
	return s.text.Render(att.Table, att.Label)
}

// Persist writes files under <kind>/<end date>/ when storage is configured, pruning files
// older than the retention first.
func (s *ExportService) Persist(kind models.ReportKind, end time.Time, files []RenderedFile) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if s.retention > 0 {
		removed, err := s.storage.CleanupOlderThan(s.retention)
		if err != nil {
			s.logger.Warn("report cleanup failed", zap.Error(err))
		} else if len(removed) > 0 {
			s.logger.Info("old reports removed", zap.Int("count", len(removed)))
		}
	}

	dir := fmt.Sprintf("%s/%s", kind, end.Format(models.DateLayout))
	saved := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := s.storage.Save(dir+"/"+f.Filename, f.Data)
		if err != nil {
			return saved, err
		}
		saved = append(saved, rel)
	}
	return saved, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "report"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
