package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
)

type invalidatorStub struct {
	patterns []string
}

func (s *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestImportServicePassesWindow(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, "#!/bin/sh\necho \"$@\" > \""+out+"\"\n")
	cache := &invalidatorStub{}
	svc := NewImportService("sh "+script, time.Minute, cache, nil)
	require.True(t, svc.Enabled())

	req := ImportRequest{Scope: models.ScopeClass, Range: dispatchRange(), Weekends: []int{5, 6}}
	require.NoError(t, svc.Run(context.Background(), req))

	args, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "--scope class --start 2024-03-04 --end 2024-03-08 --weekends 5,6", strings.TrimSpace(string(args)))
	assert.Equal(t, []string{AttendanceCachePattern}, cache.patterns)
}

func TestImportServiceFailure(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho 'store locked' >&2\nexit 3\n")
	cache := &invalidatorStub{}
	svc := NewImportService("sh "+script, time.Minute, cache, nil)

	err := svc.Run(context.Background(), ImportRequest{Scope: models.ScopeHomeroom, Range: dispatchRange()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrImport))
	assert.Contains(t, err.Error(), "store locked")
	assert.Empty(t, cache.patterns)
}

func TestImportServiceDisabled(t *testing.T) {
	svc := NewImportService("  ", 0, nil, nil)
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Run(context.Background(), ImportRequest{}))
}
