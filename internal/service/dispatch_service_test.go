package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-report/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
	"github.com/noah-isme/sma-attendance-report/pkg/mail"
)

type senderStub struct {
	sent     []*mail.Message
	err      error
	failures int
	calls    int
}

func (s *senderStub) Send(ctx context.Context, msg *mail.Message) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.calls <= s.failures {
		return errors.New("421 try again later")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func dispatchRange() models.DateRange {
	return models.DateRange{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestDispatchConsoleWithoutRecipients(t *testing.T) {
	var out bytes.Buffer
	sender := &senderStub{}
	svc := NewDispatchService(sender, nil, &out, NewMetricsService(), nil)

	err := svc.Dispatch(context.Background(), DispatchRequest{Kind: models.ReportKindClass, Range: dispatchRange()},
		[]models.Attachment{sampleAttachment("cumulative_absences", "")})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "cumulative_absences")
	assert.Contains(t, out.String(), "s1")
	assert.Empty(t, sender.sent)
}

func TestDispatchMailsAttachments(t *testing.T) {
	sender := &senderStub{}
	svc := NewDispatchService(sender, nil, &bytes.Buffer{}, NewMetricsService(), nil)

	req := DispatchRequest{
		Kind:    models.ReportKindClass,
		Scope:   models.ReportScopeWeekly,
		Range:   dispatchRange(),
		Format:  models.ReportFormatPDF,
		From:    "reports@school.test",
		To:      []string{"office@school.test"},
		Subject: "Weekly attendance",
		Body:    "See attached.",
	}
	atts := []models.Attachment{sampleAttachment("absent_days", ""), sampleAttachment("raw_data", "csv")}
	require.NoError(t, svc.Dispatch(context.Background(), req, atts))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "See attached.", msg.Body)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "absent_days.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "raw_data.csv", msg.Attachments[1].Filename)
}

func TestDispatchRendersTemplateBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Kind}} {{.StartDate}}..{{.EndDate}}: {{range .Labels}}{{.}} {{end}}"), 0o644))

	sender := &senderStub{}
	svc := NewDispatchService(sender, nil, nil, nil, nil)
	req := DispatchRequest{
		Kind:         models.ReportKindCombo,
		Range:        dispatchRange(),
		From:         "reports@school.test",
		To:           []string{"office@school.test"},
		TemplatePath: path,
	}
	require.NoError(t, svc.Dispatch(context.Background(), req, []models.Attachment{sampleAttachment("absent_in_homeroom", "")}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "combo 2024-03-04..2024-03-08: absent_in_homeroom ", sender.sent[0].Body)
}

func TestDispatchWrapsSendFailure(t *testing.T) {
	sender := &senderStub{err: errors.New("connection refused")}
	svc := NewDispatchService(sender, nil, nil, nil, nil)
	req := DispatchRequest{Kind: models.ReportKindHomeroom, Range: dispatchRange(), From: "a@b.test", To: []string{"c@d.test"}}

	err := svc.Dispatch(context.Background(), req, []models.Attachment{sampleAttachment("not_present", "")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDispatch))
}

func TestDispatchRetriesTransientSendFailure(t *testing.T) {
	sender := &senderStub{failures: 1}
	svc := NewDispatchService(sender, nil, nil, nil, nil).WithRetry(2, time.Millisecond)
	req := DispatchRequest{RunID: "run-1", Kind: models.ReportKindClass, Range: dispatchRange(), From: "a@b.test", To: []string{"c@d.test"}}

	require.NoError(t, svc.Dispatch(context.Background(), req, []models.Attachment{sampleAttachment("raw_data", "csv")}))
	assert.Equal(t, 2, sender.calls)
	assert.Len(t, sender.sent, 1)
}
