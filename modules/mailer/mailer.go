// Package mailer sends templated HTML mail over SMTP. The escalator uses it
// to deliver production alerts to the administrator.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/google/uuid"
)

//go:embed templates/*.html
var embedded embed.FS

var (
	ErrInvalidRecipient = errors.New("mailer: invalid recipient")
	ErrInvalidSender    = errors.New("mailer: invalid sender")
	ErrUnknownTemplate  = errors.New("mailer: unknown template")
)

// Templates returns the built-in mail templates.
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// SendFunc delivers a prepared message. smtp.SendMail has this signature.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Option configures a Mailer.
type Option func(*Mailer)

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(fn SendFunc) Option {
	return func(m *Mailer) { m.send = fn }
}

// WithLogger sets the logger.
func WithLogger(l baseapp.Logger) Option {
	return func(m *Mailer) { m.logger = l }
}

// WithClock overrides the Date header source.
func WithClock(now func() time.Time) Option {
	return func(m *Mailer) { m.now = now }
}

// Mailer renders and sends messages.
type Mailer struct {
	addr   string
	auth   smtp.Auth
	from   *mail.Address
	tmpl   *template.Template
	send   SendFunc
	logger baseapp.Logger
	now    func() time.Time
}

// New builds a mailer for the configured server. Templates are read from
// fsys as "<name>.html".
func New(cfg config.MailConfig, fsys fs.FS, opts ...Option) (*Mailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSender, cfg.From, err)
	}
	tmpl, err := template.ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("mailer: parse templates: %w", err)
	}
	m := &Mailer{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:   from,
		tmpl:   tmpl,
		send:   smtp.SendMail,
		logger: baseapp.NopLogger{},
		now:    time.Now,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Addr returns the SMTP server address.
func (m *Mailer) Addr() string { return m.addr }

// Send renders template with payload and mails it to recipient. The subject
// is available to the template as .Subject.
func (m *Mailer) Send(ctx context.Context, subject, recipient, name string, payload map[string]any) error {
	to, err := mail.ParseAddress(recipient)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRecipient, recipient, err)
	}
	body, err := m.render(name, subject, payload)
	if err != nil {
		return err
	}
	msg := m.compose(subject, to, body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from.Address, []string{to.Address}, msg); err != nil {
		return fmt.Errorf("mailer: send to %s via %s: %w", to.Address, m.addr, err)
	}
	m.logger.Info("Mail sent", "to", to.Address, "template", name)
	return nil
}

func (m *Mailer) render(name, subject string, payload map[string]any) ([]byte, error) {
	t := m.tmpl.Lookup(name + ".html")
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	data := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data["Subject"] = subject
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("mailer: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (m *Mailer) compose(subject string, to *mail.Address, body []byte) []byte {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", m.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(m.from.Address)))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	buf.WriteString("\r\n")
	buf.Write(bytes.ReplaceAll(bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n")))
	return buf.Bytes()
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}
