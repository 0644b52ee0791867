// Package notify emails backtest summaries and nightly search results over SMTP.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/reporting"
)

// ErrNotConfigured is returned when no SMTP host or recipient is configured.
// Callers log it and continue.
var ErrNotConfigured = errors.New("smtp not configured")

// Subjects of the messages sent by stocklab.
const (
	SubjectBacktest  = "Backtest results"
	SubjectBestTrial = "Nightly optimizer best trial"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int // default 587
	User     string
	Password string
	TLS      bool // STARTTLS after connecting
	SSL      bool // implicit TLS; takes precedence over TLS
	From     string
	To       []string
}

// Mailer sends plain-text email.
type Mailer struct {
	cfg     Config
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewMailer creates a mailer. From defaults to User.
func NewMailer(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger, timeout: 30 * time.Second, now: time.Now}
}

// Configured reports whether the mailer has a host and at least one recipient.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && len(m.cfg.To) > 0
}

// SendBacktestSummary emails the backtest summary block.
func (m *Mailer) SendBacktestSummary(ctx context.Context, s *domain.BacktestSummary) error {
	return m.Send(ctx, SubjectBacktest, reporting.RenderSummaryText(s))
}

// SendBestTrial emails the winning trial of a search.
func (m *Mailer) SendBestTrial(ctx context.Context, t *domain.TrialRecord) error {
	return m.Send(ctx, SubjectBestTrial, reporting.RenderTrialText(t))
}

// Send delivers one message to every configured recipient.
func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.cfg.TLS && !m.cfg.SSL {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, to := range m.cfg.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(m.message(subject, body)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}

	m.logger.Info("email sent", zap.String("subject", subject), zap.Strings("to", m.cfg.To))
	return nil
}

func (m *Mailer) dial(ctx context.Context, addr string) (net.Conn, error) {
	if m.cfg.SSL {
		d := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.Host}}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// message renders RFC 5322 headers and a CRLF-normalized body.
func (m *Mailer) message(subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + m.cfg.From + "\r\n")
	sb.WriteString("To: " + strings.Join(m.cfg.To, ", ") + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("Date: " + m.now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}
