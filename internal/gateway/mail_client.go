package gateway

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// MailClient delivers email through an SMTP relay.
type MailClient struct {
	cfg config.MailConfig
}

func NewMailClient(cfg config.MailConfig) *MailClient {
	return &MailClient{cfg: cfg}
}

func (c *MailClient) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(c.cfg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", c.cfg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	opts := []mail.Option{mail.WithPort(c.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password))
	}
	client, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", ErrUpstreamUnavailable, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: smtp send: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}
