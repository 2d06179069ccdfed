package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string
}

// EmailChannel is the "detailed" channel: the full structured report with
// log excerpts, delivered over SMTP.
type EmailChannel struct {
	cfg EmailConfig
	log logx.Logger

	// send is injectable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg EmailConfig, log logx.Logger) *EmailChannel {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg, log: log, send: smtp.SendMail}
}

func (c *EmailChannel) ID() string    { return "email" }
func (c *EmailChannel) Enabled() bool { return c.cfg.Enabled }

func (c *EmailChannel) Deliver(ctx context.Context, rep report.RunReport) error {
	msg := c.buildMessage(rep)

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	// smtp.SendMail has no context support; run it aside and honor the
	// dispatcher's deadline ourselves.
	done := make(chan error, 1)
	go func() {
		done <- c.send(addr, auth, c.cfg.From, c.cfg.To, msg)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", addr, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", addr, err)
		}
		return nil
	}
}

func (c *EmailChannel) buildMessage(rep report.RunReport) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(rep))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(Detailed(rep), "\n", "\r\n"))
	return []byte(b.String())
}
