// Package mail delivers email-confirmation links, either over SMTP or to the
// log for local development.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/logging"
)

// Config holds SMTP settings. BaseURL is the public API address the
// confirmation link points to.
type Config struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	From        string `koanf:"from"`
	FromName    string `koanf:"from_name"`
	BaseURL     string `koanf:"base_url"`
	ImplicitTLS bool   `koanf:"implicit_tls"`
	Subject     string `koanf:"subject"`
	Template    string `koanf:"template"`
}

// ConfirmParams is passed as data when executing the confirmation template.
type ConfirmParams struct {
	Username string
	Email    string
	Link     string
	Sender   string
}

// DefaultSubject is the default for Config.Subject.
const DefaultSubject = "Confirm your email"

// DefaultTemplate is the default for Config.Template.
const DefaultTemplate = `<!DOCTYPE html>
<html>
<body>
<p>Hi {{.Username}},</p>
<p>Thanks for signing up. Please confirm {{.Email}} by following the link below:</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not create an account, you can ignore this email.</p>
<p>Regards,<br>{{.Sender}}</p>
</body>
</html>
`

// ConfirmLink builds the confirmation URL for token.
func ConfirmLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/auth/confirmed_email/" + token
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer implements goContacts.Mailer over SMTP.
type SMTPMailer struct {
	cfg  Config
	tmpl *template.Template
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer parses the template and prepares the transport.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	tmpl, err := template.New("confirm").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("mail: parse template: %w", err)
	}

	m := &SMTPMailer{cfg: cfg, tmpl: tmpl, send: smtp.SendMail, now: time.Now}
	if cfg.ImplicitTLS {
		m.send = m.sendImplicitTLS
	}
	return m, nil
}

// SendConfirmation renders the template for msg and sends it.
func (m *SMTPMailer) SendConfirmation(ctx context.Context, msg goContacts.ConfirmationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := m.render(msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{msg.Email}, body); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.Email, err)
	}
	return nil
}

func (m *SMTPMailer) render(msg goContacts.ConfirmationMessage) ([]byte, error) {
	sender := m.cfg.FromName
	if sender == "" {
		sender = m.cfg.From
	}
	var html bytes.Buffer
	err := m.tmpl.Execute(&html, ConfirmParams{
		Username: msg.Username,
		Email:    msg.Email,
		Link:     ConfirmLink(m.cfg.BaseURL, msg.Token),
		Sender:   sender,
	})
	if err != nil {
		return nil, fmt.Errorf("mail: execute template: %w", err)
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = mime.QEncoding.Encode("utf-8", m.cfg.FromName) + " <" + m.cfg.From + ">"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.cfg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(html.Bytes())
	return b.Bytes(), nil
}

// sendImplicitTLS is smtp.SendMail for servers that expect TLS from the
// first byte (port 465).
func (m *SMTPMailer) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer writes the confirmation link to the log instead of sending it.
type LogMailer struct {
	log     logging.Logger
	baseURL string
}

// NewLogMailer returns a development mailer.
func NewLogMailer(log logging.Logger, baseURL string) *LogMailer {
	if log == nil {
		log = logging.NewNop()
	}
	return &LogMailer{log: log, baseURL: baseURL}
}

// SendConfirmation logs the link. Development only: the link is a live
// credential.
func (l *LogMailer) SendConfirmation(ctx context.Context, msg goContacts.ConfirmationMessage) error {
	l.log.Info(ctx, "confirmation mail",
		"to", msg.Email,
		"username", msg.Username,
		"link", ConfirmLink(l.baseURL, msg.Token),
	)
	return nil
}
