package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sol1corejz/topgo-reports/internal/xls"
	"github.com/wneessen/go-mail"
)

var ErrDispatch = errors.New("mail dispatch failed")

const body = "Отчет во вложении."

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Mailer delivers report files over an authenticated SMTP relay. Credentials
// are fixed at construction.
type Mailer struct {
	client  *mail.Client
	from    string
	timeout time.Duration
}

func New(cfg Config) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(cfg.Timeout)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &Mailer{client: client, from: cfg.From, timeout: cfg.Timeout}, nil
}

// SendFile mails the file at path as an attachment. The file is left on disk.
func (m *Mailer) SendFile(ctx context.Context, to, path, subject string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}

	msg, err := NewMessage(m.from, to, subject, filepath.Base(path), data)
	if err != nil {
		return err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: to %s: %w", ErrDispatch, to, err)
	}
	return nil
}

// deadlineDialer bounds the whole SMTP conversation, greeting included, by the
// dial context deadline or, failing that, by timeout.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		deadline, ok := ctx.Deadline()
		if !ok && timeout > 0 {
			deadline, ok = time.Now().Add(timeout), true
		}
		if ok {
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}
}

func NewMessage(from, to, subject, filename string, data []byte) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	err := msg.AttachReader(filename, bytes.NewReader(data),
		mail.WithFileContentType(mail.ContentType(xls.ContentType)))
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", filename, err)
	}

	return msg, nil
}
