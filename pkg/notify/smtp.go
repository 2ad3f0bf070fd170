package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"mastowatch/pkg/config"
	"mastowatch/pkg/logger"
)

// SMTPNotifier sends plain-text alerts through an authenticated SMTP relay
type SMTPNotifier struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	logger  logger.Logger
	send    func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPNotifier creates a notifier for the relay described by cfg.
// Mail is sent from cfg.From, or from the relay user when From is empty.
func NewSMTPNotifier(cfg config.SMTPConfig, log logger.Logger) *SMTPNotifier {
	if log == nil {
		log = logger.GetLogger()
	}

	n := &SMTPNotifier{
		cfg:     cfg,
		timeout: 30 * time.Second,
		logger:  log.WithField("smtp_server", cfg.Server),
	}
	n.send = n.dialAndSend
	return n
}

// Notify builds the message and hands it to the relay
func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	msg, err := n.buildMessage(subject, body)
	if err != nil {
		return err
	}

	if err := n.send(ctx, msg); err != nil {
		n.logger.WithError(err).Error("SMTP delivery failed")
		return fmt.Errorf("failed to send alert: %w", err)
	}

	n.logger.InfoWithFields("Email notification sent", map[string]interface{}{
		"to":      n.recipients(),
		"subject": subject,
	})
	return nil
}

func (n *SMTPNotifier) sender() string {
	if n.cfg.From != "" {
		return n.cfg.From
	}
	return n.cfg.User
}

// recipients splits the configured To field on commas
func (n *SMTPNotifier) recipients() []string {
	var out []string
	for _, addr := range strings.Split(n.cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func (n *SMTPNotifier) buildMessage(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.sender()); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	to := n.recipients()
	if len(to) == 0 {
		return nil, fmt.Errorf("no alert recipient configured")
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.User),
		mail.WithPassword(n.cfg.Password),
		mail.WithTimeout(n.timeout),
	}
	if n.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(n.cfg.Server, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
