package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/masomo-portal/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridService delivers portal mail (note exports, notifications) through the SendGrid v3 API.
// Rate limited requests are retried.
type SendgridService struct {
	key        string
	host       string
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	sync       bool

	wg sync.WaitGroup
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &SendgridService{
		key:        conf.SendgridApiKey,
		host:       sendgridHost,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.deliver(msg)
			continue
		}
		svc.wg.Add(1)
		go func(msg *core.EmailMessage) {
			defer svc.wg.Done()
			svc.deliver(msg)
		}(msg)
	}
}

// Wait blocks until every message handed to SendMessages has been delivered or dropped.
func (svc *SendgridService) Wait() { svc.wg.Wait() }

func (svc *SendgridService) deliver(msg *core.EmailMessage) {
	if !deliverable(msg, svc.logger) {
		return
	}
	if err := svc.send(svc.build(*msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending %q to %s: %v", msg.Subject, joinAddresses(msg.To), err), err)
	}
}

// build maps a message onto one personalization. SendGrid rejects an address repeated
// across to, cc and bcc, so only its first occurrence is kept.
func (svc *SendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	seen := make(map[string]bool)
	recipients := func(addrs []mail.Address, add func(...*sgmail.Email)) {
		for _, a := range addrs {
			key := strings.ToLower(strings.TrimSpace(a.Address))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			add(sgmail.NewEmail(a.Name, a.Address))
		}
	}
	recipients(msg.To, p.AddTos)
	recipients(msg.Cc, p.AddCCs)
	recipients(msg.Bcc, p.AddBCCs)

	m := sgmail.NewV3Mail().
		SetFrom(sgmail.NewEmail(svc.from.Name, svc.from.Address)).
		AddPersonalizations(p)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	// the API wants text/plain first, and at least one part even for attachment-only mail
	if msg.TextContent != "" || msg.HTMLContent == "" {
		m.AddContent(sgmail.NewContent("text/plain", orSpace(msg.TextContent)))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func (svc *SendgridService) send(m *sgmail.SGMailV3) error {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, svc.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestRetry(req)
	if err != nil {
		return errors.Wrap(err, "calling sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid answered %d: %s", res.StatusCode, strings.TrimSpace(res.Body))
	}
	return nil
}

func orSpace(s string) string {
	if s == "" {
		return " "
	}
	return s
}
