// Package email formats user invites and sends them over SMTP.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// Invite is a new user's welcome message.
type Invite struct {
	Name         string
	Email        string
	Organization string
	Role         string
	APIKey       string
	ServerURL    string
}

// InviteSubject is the subject line of invite emails.
const InviteSubject = "Your vigia field account"

// FormatInvite builds the plain-text invite body with login instructions.
func FormatInvite(inv Invite) string {
	var buf bytes.Buffer

	name := inv.Name
	if name == "" {
		name = inv.Email
	}
	fmt.Fprintf(&buf, "Hi %s,\n\n", name)

	org := ""
	if inv.Organization != "" {
		org = " at " + inv.Organization
	}
	fmt.Fprintf(&buf, "An account with the %s role was created for you%s.\n\n", inv.Role, org)

	fmt.Fprintf(&buf, "To start recording visits, run:\n\n")
	fmt.Fprintf(&buf, "   vigia login --server %s --api-key %s\n\n", inv.ServerURL, inv.APIKey)
	fmt.Fprintf(&buf, "Keep this key private. Ask your supervisor for a new one if it leaks.\n\n")
	fmt.Fprintf(&buf, "Thanks!\n")

	return buf.String()
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(cfg SMTPConfig, to []string, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		cfg.From,
		strings.Join(to, ", "),
		subject,
		body,
	)

	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg string) (err error) {
	tlsCfg := &tls.Config{ServerName: cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
