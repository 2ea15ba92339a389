package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

const base64LineLength = 76

// Attachment is one file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a plain-text mail with optional attachments.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
	Date        time.Time
}

// Attach appends a file to the message.
func (m *Message) Attach(filename, contentType string, content []byte) {
	m.Attachments = append(m.Attachments, Attachment{Filename: filename, ContentType: contentType, Content: content})
}

func (m *Message) HasRecipients() bool  { return len(m.To) > 0 }
func (m *Message) HasAttachments() bool { return len(m.Attachments) > 0 }

// Validate checks the sender and every recipient address.
func (m *Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	if !m.HasRecipients() {
		return fmt.Errorf("message has no recipients")
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
	}
	return nil
}

// Bytes renders the message as multipart/mixed with base64 attachments.
func (m *Message) Bytes() ([]byte, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	header := &bytes.Buffer{}
	fmt.Fprintf(header, "From: %s\r\n", m.From)
	fmt.Fprintf(header, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(header, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(header, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprint(header, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(header, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := fmt.Fprintf(part, "%s\r\n", m.Body); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	for _, at := range m.Attachments {
		ct := at.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(ct, map[string]string{"name": at.Filename})},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": at.Filename})},
		})
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", at.Filename, err)
		}
		if err := writeBase64(part, at.Content); err != nil {
			return nil, fmt.Errorf("write %s part: %w", at.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	return append(header.Bytes(), body.Bytes()...), nil
}

func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := base64LineLength
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
