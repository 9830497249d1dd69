// internal/service/email/service.go
package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	// Secure selects implicit TLS (465); otherwise STARTTLS is negotiated (587).
	Secure bool
}

// EmailSender delivers branded HTML mail over SMTP.
type EmailSender struct {
	cfg Config
}

func NewEmailSender(cfg Config) *EmailSender {
	return &EmailSender{cfg: cfg}
}

func (e *EmailSender) Send(to, subject, bodyHTML string) error {
	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}

	from := fmt.Sprintf("%s <%s>", e.cfg.FromName, e.cfg.Username)
	if err := deliver(client, e.cfg.Username, to, buildMessage(from, to, subject, bodyHTML)); err != nil {
		return err
	}
	return client.Quit()
}

func (e *EmailSender) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(e.cfg.Host, e.cfg.Port)
	tlsCfg := &tls.Config{ServerName: e.cfg.Host}

	if e.cfg.Secure {
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial failed: %w", err)
		}
		client, err := smtp.NewClient(conn, e.cfg.Host)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("smtp handshake failed: %w", err)
		}
		return client, nil
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial failed: %w", err)
	}
	if err := client.StartTLS(tlsCfg); err != nil {
		client.Close()
		return nil, fmt.Errorf("smtp starttls failed: %w", err)
	}
	return client, nil
}

func deliver(client *smtp.Client, from, to string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO rejected: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

func buildMessage(from, to, subject, bodyHTML string) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
	}
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf(layout, strings.TrimSpace(bodyHTML)))
	return []byte(b.String())
}

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<title>Tuzo Rewards</title>
<style>
body { font-family: Arial, sans-serif; background: #f4f7f5; padding: 24px; }
.card { max-width: 560px; margin: auto; background: #ffffff; border-radius: 8px; overflow: hidden; }
.brand { background: #0b8a4a; color: #ffffff; padding: 18px; font-size: 20px; font-weight: bold; text-align: center; }
.content { padding: 24px; color: #222222; line-height: 1.6; }
.note { background: #eef2ef; color: #666666; padding: 12px; font-size: 12px; text-align: center; }
</style>
</head>
<body>
<div class="card">
<div class="brand">Tuzo Rewards</div>
<div class="content">%s</div>
<div class="note">You are receiving this because you are a loyalty member.</div>
</div>
</body>
</html>
`
