package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	key        string
	host       string
	subjPrefix string
}

// NewSendGridSender constructs a SendGrid sender. An empty host targets the public API.
func NewSendGridSender(key, host, subjPrefix string) *SendGridSender {
	if host == "" {
		host = sendgridHost
	}
	return &SendGridSender{key: key, host: host, subjPrefix: subjPrefix}
}

// Send posts msg to SendGrid and fails on any 4xx/5xx answer.
func (svc *SendGridSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m, err := svc.prepare(msg)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, svc.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (svc *SendGridSender) prepare(msg *Message) (*sgmail.SGMailV3, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
		}
		p.AddTos(sgmail.NewEmail(addr.Name, addr.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(from.Name, from.Address))
	m.AddPersonalizations(p)

	body := msg.Body
	if body == "" {
		body = " "
	}
	m.AddContent(sgmail.NewContent("text/plain", body))

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(at.Content),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m, nil
}
