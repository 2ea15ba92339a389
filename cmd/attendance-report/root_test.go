package main

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	"github.com/noah-isme/sma-attendance-report/pkg/config"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		SMTP: config.SMTPConfig{
			From:    "env@school.test",
			Host:    "smtp.gmail.com",
			Port:    465,
			Subject: "Attendance report",
			TLS:     true,
		},
		Mail: config.MailConfig{Transport: config.MailTransportSMTP},
		Reports: config.ReportsConfig{
			Format:          "csv",
			AbsentCategory:  "Absent",
			PresentCategory: "Present",
			ManualStatuses:  []string{"Late"},
			WorkWeek:        "mon-fri",
		},
	}
}

func parse(t *testing.T, kind models.ReportKind, args ...string) (*cobra.Command, *runFlags) {
	t.Helper()
	flags := &runFlags{}
	cmd := &cobra.Command{Use: string(kind)}
	bindFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, flags
}

func TestBuildRunRequestDefaults(t *testing.T) {
	_, flags := parse(t, models.ReportKindClass)
	req := buildRunRequest(models.ReportKindClass, flags, testConfig())

	assert.Equal(t, "class", req.Kind)
	assert.Equal(t, "weekly", req.Scope)
	assert.Equal(t, "mon-fri", req.WorkWeek)
	assert.True(t, req.Import)
	assert.Equal(t, "Absent", req.AbsentCategory)
	assert.Equal(t, []string{"Late"}, req.ManualStatuses)
	assert.Equal(t, "csv", req.Format)
	assert.Equal(t, "env@school.test", req.From)
	assert.Empty(t, req.To)
	assert.Equal(t, "Attendance report", req.Subject)
}

func TestBuildRunRequestFlagsOverride(t *testing.T) {
	_, flags := parse(t, models.ReportKindHomeroom,
		"--scope", "Monthly",
		"--date", "2024-03-07",
		"-w", "sun-thurs",
		"--skip-import",
		"--absent-category-name", "Away",
		"--manual-status", "Excused",
		"--manual-status", "Sick",
		"--to", "office@school.test",
		"--to", "head@school.test",
		"--from", "reports@school.test",
		"--subject", "Monthly homeroom",
		"--format", "XLSX",
		"--template", "body.tmpl",
	)
	req := buildRunRequest(models.ReportKindHomeroom, flags, testConfig())

	assert.Equal(t, "monthly", req.Scope)
	assert.Equal(t, "2024-03-07", req.Date)
	assert.Equal(t, "sun-thurs", req.WorkWeek)
	assert.False(t, req.Import)
	assert.Equal(t, "Away", req.AbsentCategory)
	assert.Equal(t, []string{"Excused", "Sick"}, req.ManualStatuses)
	assert.Equal(t, []string{"office@school.test", "head@school.test"}, req.To)
	assert.Equal(t, "reports@school.test", req.From)
	assert.Equal(t, "Monthly homeroom", req.Subject)
	assert.Equal(t, "xlsx", req.Format)
	assert.Equal(t, "body.tmpl", req.TemplatePath)
}

func TestSubjectPrefixForSMTP(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.SubjectPrefix = "[MBPY]"
	_, flags := parse(t, models.ReportKindCombo)
	assert.Equal(t, "[MBPY] Attendance report", buildRunRequest(models.ReportKindCombo, flags, cfg).Subject)

	cfg.Mail.Transport = config.MailTransportSendGrid
	assert.Equal(t, "Attendance report", buildRunRequest(models.ReportKindCombo, flags, cfg).Subject)
}

func TestSMTPSettingsFallBackToEnvironment(t *testing.T) {
	cmd, flags := parse(t, models.ReportKindClass, "--password", "secret")
	settings := smtpSettings(cmd, flags, testConfig())
	assert.Equal(t, "smtp.gmail.com", settings.Host)
	assert.Equal(t, 465, settings.Port)
	assert.True(t, settings.ImplicitTLS)
	assert.Equal(t, "env@school.test", settings.Username)
	assert.Equal(t, "secret", settings.Password)

	cmd, flags = parse(t, models.ReportKindClass, "--host", "localhost", "--port", "2525", "--tls=false")
	settings = smtpSettings(cmd, flags, testConfig())
	assert.Equal(t, "localhost", settings.Host)
	assert.Equal(t, 2525, settings.Port)
	assert.False(t, settings.ImplicitTLS)
}

func TestRootRegistersReportCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"homeroom", "class", "combo"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("manual-status"))
	}
}

func TestRunReportRejectsConfigurationBeforeConnecting(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("LOG_LEVEL", "error")

	cases := []struct {
		args []string
		want error
	}{
		{[]string{"homeroom", "--work-week", "tue-sat", "--skip-import"}, appErrors.ErrInvalidConfiguration},
		{[]string{"class", "--scope", "quarterly", "--skip-import"}, appErrors.ErrNotImplemented},
	}
	for _, tc := range cases {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(tc.args)

		err := root.Execute()
		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.want), "args %v: %v", tc.args, err)
		assert.False(t, errors.Is(err, appErrors.ErrStore))
	}
}
