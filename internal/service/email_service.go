package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional HTML emails.
type EmailService interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NoopEmailService only logs; used in development and when no provider is configured.
type NoopEmailService struct{}

func (NoopEmailService) Send(ctx context.Context, to, subject, html string) error {
	log.Printf("[EmailService] noop send to=%s subject=%q", to, subject)
	return nil
}

// ResendEmailService sends through the Resend REST API with bounded retries.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) Send(ctx context.Context, to, subject, html string) error {
	if to == "" || subject == "" {
		return fmt.Errorf("recipient and subject are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	// One key across retries so a timed-out first attempt is not delivered twice.
	options := &resend.SendEmailOptions{IdempotencyKey: uuid.NewString()}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, retry := resendRetryDelay(err, attempt)
		if !retry {
			return fmt.Errorf("resend send failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}

// SMTPEmailService is the fallback transport for self-hosted mail relays.
type SMTPEmailService struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmailService(host string, port int, username, password, from string) (*SMTPEmailService, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPEmailService{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		from:     from,
		auth:     auth,
		sendMail: smtp.SendMail,
	}, nil
}

func (s *SMTPEmailService) Send(ctx context.Context, to, subject, html string) error {
	if to == "" || subject == "" {
		return fmt.Errorf("recipient and subject are required")
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return fmt.Errorf("recipient and subject must be single-line")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(html)

	if err := s.sendMail(s.addr, s.auth, envelopeAddress(s.from), []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send via %s failed: %w", s.host, err)
	}
	return nil
}

// envelopeAddress strips a display name: "Laundry <a@b.com>" -> "a@b.com".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

// NewEmailService picks the transport by provider name.
func NewEmailService(provider, from, resendAPIKey, smtpHost string, smtpPort int, smtpUser, smtpPassword string) (EmailService, error) {
	switch provider {
	case "resend":
		return NewResendEmailService(resendAPIKey, from)
	case "smtp":
		return NewSMTPEmailService(smtpHost, smtpPort, smtpUser, smtpPassword, from)
	case "", "noop":
		return NoopEmailService{}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", provider)
	}
}
