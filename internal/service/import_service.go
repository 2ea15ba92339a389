package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
)

// ImportRequest describes the window the upstream import should refresh.
type ImportRequest struct {
	Scope    models.Scope
	Range    models.DateRange
	Weekends []int
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ImportService refreshes the attendance store by running an external command.
type ImportService struct {
	command []string
	timeout time.Duration
	cache   cacheInvalidator
	logger  *zap.Logger
}

// NewImportService parses command into argv. An empty command disables imports.
func NewImportService(command string, timeout time.Duration, cache cacheInvalidator, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ImportService{command: strings.Fields(command), timeout: timeout, cache: cache, logger: logger}
}

// Enabled reports whether an import command is configured.
func (s *ImportService) Enabled() bool {
	return s != nil && len(s.command) > 0
}

// Run invokes the import command with --scope, --start, --end and --weekends and then drops
// cached attendance so the next fetch sees the fresh data.
func (s *ImportService) Run(ctx context.Context, req ImportRequest) error {
	if !s.Enabled() {
		if s != nil {
			s.logger.Info("import skipped: no command configured")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, s.command[1:]...),
		"--scope", string(req.Scope),
		"--start", req.Range.Start.Format(models.DateLayout),
		"--end", req.Range.End.Format(models.DateLayout),
		"--weekends", joinInts(req.Weekends),
	)
	cmd := exec.CommandContext(ctx, s.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return appErrors.Wrap(err, appErrors.ErrImport.Code, appErrors.ErrImport.ExitCode, appErrors.ErrImport.Message)
	}
	s.logger.Sugar().Infow("attendance imported",
		"scope", req.Scope,
		"start", req.Range.Start.Format(models.DateLayout),
		"end", req.Range.End.Format(models.DateLayout),
		"duration", time.Since(started),
	)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, AttendanceCachePattern); err != nil {
			s.logger.Warn("cache invalidation after import failed", zap.Error(err))
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
