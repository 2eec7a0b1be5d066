// Package mail delivers generated documents by email.
package mail

import (
	"context"
	"fmt"
	"io"
	"net/mail"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/garyjia/legal-docgen/internal/application/port"
)

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends emails through an SMTP relay
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	send   func(m *gomail.Message) error
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.From, err)
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	s := &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		logger: logger,
	}
	s.send = func(m *gomail.Message) error { return s.dialer.DialAndSend(m) }
	return s, nil
}

// Send delivers msg, with its attachment when one is set
func (s *SMTPSender) Send(ctx context.Context, msg port.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	s.logger.Info("Sending email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("attachment", msg.AttachmentName))

	if err := s.send(m); err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", msg.To),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(msg port.EmailMessage) (*gomail.Message, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if len(msg.Attachment) > 0 {
		content := msg.Attachment
		m.Attach(msg.AttachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	return m, nil
}

// LogSender only logs outgoing emails. It is used when email delivery is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg and reports success
func (s *LogSender) Send(ctx context.Context, msg port.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("Email delivery disabled, message not sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachment_size", len(msg.Attachment)))
	return nil
}

// Verify interface compliance
var (
	_ port.EmailSender = (*SMTPSender)(nil)
	_ port.EmailSender = (*LogSender)(nil)
)
