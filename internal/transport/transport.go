// Package transport implements the SMTP submission gateway (C11): STARTTLS
// dial, PLAIN auth without a TLS requirement, and retry-on-421 semantics.
// Grounded directly on the teacher's internal/worker/esp_pmta.go
// (sendSMTP, pmtaPlainAuth), generalized per spec.md §4.11 with account-key
// adjustment, dry-run short-circuit, and a bounded 421 retry loop instead
// of PMTA's AUTH-then-retry-without-AUTH fallback.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/ignite/email-campaign-agent/internal/credentials"
	"github.com/ignite/email-campaign-agent/internal/executor"
)

// Config holds the SMTP submission parameters of spec.md §6.
type Config struct {
	Server          string
	Port            int
	DefaultFromName string
	DefaultPreview  string
}

// Gateway submits specialized emails over raw SMTP, resolving per-account
// credentials through a credentials.Cache. It satisfies executor.Sender
// structurally.
type Gateway struct {
	cfg       Config
	creds     *credentials.Cache
	dial      func(ctx context.Context, addr string) (net.Conn, error)
	retryWait time.Duration
}

var _ executor.Sender = (*Gateway)(nil)

// New constructs a Gateway that resolves credentials through creds and
// dials SMTP with the stdlib net.Dialer.
func New(cfg Config, creds *credentials.Cache) *Gateway {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return &Gateway{
		cfg:       cfg,
		creds:     creds,
		dial:      func(ctx context.Context, addr string) (net.Conn, error) { return dialer.DialContext(ctx, "tcp", addr) },
		retryWait: retry421Wait,
	}
}

const (
	maxRetries421 = 5
	retry421Wait  = 60 * time.Second
	code421       = 421
)

// Send submits msg, resolving the sender's credentials from msg.Account and
// msg.Student.Country, per spec.md §4.11. A DryRun message is logged and
// never actually dialed out.
func (g *Gateway) Send(ctx context.Context, msg executor.SendMessage) error {
	if msg.DryRun {
		log.Printf("[transport] dry-run: would send to %s (%s)", msg.Student.Email, msg.Language)
		return nil
	}

	cred, err := g.creds.Resolve(ctx, msg.Account, msg.Student.Country)
	if err != nil {
		return fmt.Errorf("transport: resolve credentials for %s: %w", msg.Account, err)
	}

	from := fmt.Sprintf("%s<%s>", g.cfg.DefaultFromName, cred.Username)
	raw := buildMessage(from, msg.Student.Email, msg.Subject, g.cfg.DefaultPreview, msg.HTML)

	addr := fmt.Sprintf("%s:%d", g.cfg.Server, g.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries421; attempt++ {
		err := g.sendSMTP(ctx, addr, cred.Username, cred.Password, cred.Username, msg.Student.Email, raw)
		if err == nil {
			return nil
		}

		var textErr *textproto.Error
		if errors.As(err, &textErr) && textErr.Code == code421 {
			lastErr = err
			log.Printf("[transport] 421 from %s, retrying in %s (attempt %d/%d)", addr, g.retryWait, attempt, maxRetries421)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.retryWait):
			}
			continue
		}
		return fmt.Errorf("transport: send to %s: %w", msg.Student.Email, err)
	}

	return fmt.Errorf("transport: send to %s: exhausted %d retries on 421: %w", msg.Student.Email, maxRetries421, lastErr)
}

// buildMessage assembles an RFC-5322 message with a plain preview part and
// the specialized HTML part, per spec.md §4.11.
func buildMessage(from, to, subject, preview, html string) []byte {
	var buf bytes.Buffer
	boundary := "ignite-email-campaign-agent"

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(preview)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	buf.WriteString(html)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return buf.Bytes()
}

// sendSMTP performs one raw SMTP transaction: dial, STARTTLS if offered,
// PLAIN auth, MAIL FROM/RCPT TO/DATA.
func (g *Gateway) sendSMTP(ctx context.Context, addr, user, pass, from, to string, msg []byte) error {
	conn, err := g.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, g.cfg.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: g.cfg.Server}
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if user != "" {
		if err := c.Auth(&plainAuth{user: user, pass: pass}); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}
	return c.Quit()
}

// plainAuth implements smtp.Auth without the TLS requirement stdlib's
// PlainAuth enforces, for relays whose submission port isn't encrypted.
type plainAuth struct {
	user, pass string
}

func (a *plainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	resp := []byte("\x00" + a.user + "\x00" + a.pass)
	return "PLAIN", resp, nil
}

func (a *plainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	return nil, nil
}
