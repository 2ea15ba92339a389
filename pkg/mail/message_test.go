package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *Message {
	msg := &Message{
		From:    "reports@school.test",
		To:      []string{"office@school.test", "Head <head@school.test>"},
		Subject: "Weekly attendance",
		Body:    "Attached.",
		Date:    time.Date(2024, 1, 5, 7, 0, 0, 0, time.UTC),
	}
	msg.Attach("absent_days.csv", "text/csv", []byte("Student Id,2024-01-03\n1001,flu\n"))
	return msg
}

func TestMessageBytesMultipart(t *testing.T) {
	raw, err := sampleMessage().Bytes()
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Weekly attendance", parsed.Header.Get("Subject"))
	assert.Equal(t, "office@school.test, Head <head@school.test>", parsed.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	text, err := reader.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Equal(t, "Attached.\r\n", string(body))

	attachment, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "absent_days.csv", attachment.FileName())
	encoded, err := io.ReadAll(attachment)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "Student Id,2024-01-03\n1001,flu\n", string(decoded))

	_, err = reader.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, sampleMessage().Validate())

	msg := sampleMessage()
	msg.To = nil
	assert.Error(t, msg.Validate())

	msg = sampleMessage()
	msg.From = "not an address"
	assert.Error(t, msg.Validate())
}

func TestWriteBase64WrapsLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBase64(&buf, bytes.Repeat([]byte("a"), 200)))
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), base64LineLength)
	}
}

func TestRenderTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("Attendance {{.StartDate}} to {{.EndDate}}"), 0o644))

	out, err := RenderTemplate(path, map[string]string{"StartDate": "2024-01-01", "EndDate": "2024-01-05"})
	require.NoError(t, err)
	assert.Equal(t, "Attendance 2024-01-01 to 2024-01-05", out)

	_, err = RenderTemplate(path, map[string]string{"StartDate": "2024-01-01"})
	assert.Error(t, err)

	_, err = RenderTemplate(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}
