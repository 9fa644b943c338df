package invite

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"libras-central/internal/config"
)

// Invitation carries one out-of-band join notification for an active call.
// It is fire-and-forget: delivery failures are reported to the caller and
// never touch call state, and repeated invites to the same address are
// allowed since the recipient may not have seen the first one.
type Invitation struct {
	CallID      string
	TenantID    string
	Email       string
	DisplayName string
	RoomURL     string
	InvitedBy   string
}

var (
	ErrInvalidAddress = errors.New("invite: invalid email address")
	ErrNotConfigured  = errors.New("invite: smtp not configured")
)

// Relay sends join invitations via SMTP.
type Relay struct {
	cfg    config.SMTPConfig
	logger *slog.Logger

	// dialFunc allows injecting a custom dialer for testing.
	dialFunc func(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error)
}

// smtpClient abstracts the methods used from *smtp.Client for testing.
type smtpClient interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

func NewRelay(cfg config.SMTPConfig, logger *slog.Logger) *Relay {
	return &Relay{
		cfg:      cfg,
		logger:   logger.With("component", "invite"),
		dialFunc: defaultDial,
	}
}

// Send delivers a join invitation. The context deadline bounds nothing here
// beyond caller cancellation checks; SMTP dial timeouts are fixed.
func (r *Relay) Send(ctx context.Context, inv Invitation) error {
	if r.cfg.Host == "" || r.cfg.From == "" {
		return ErrNotConfigured
	}
	if _, err := mail.ParseAddress(inv.Email); err != nil {
		return ErrInvalidAddress
	}
	if inv.RoomURL == "" {
		return errors.New("invite: room url required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(r.cfg.From, inv)

	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	tlsConfig := &tls.Config{ServerName: r.cfg.Host}

	client, err := r.dialFunc(addr, tlsConfig, r.cfg.TLSMode)
	if err != nil {
		return fmt.Errorf("invite: connecting to smtp server: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("invite: smtp hello: %w", err)
	}

	if strings.EqualFold(r.cfg.TLSMode, "starttls") {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("invite: smtp starttls: %w", err)
			}
		}
	}

	if r.cfg.Username != "" && r.cfg.Password != "" {
		auth := smtp.PlainAuth("", r.cfg.Username, r.cfg.Password, r.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("invite: smtp auth: %w", err)
		}
	}

	if err := client.Mail(r.cfg.From); err != nil {
		return fmt.Errorf("invite: smtp mail from: %w", err)
	}
	if err := client.Rcpt(inv.Email); err != nil {
		return fmt.Errorf("invite: smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("invite: smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("invite: smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("invite: smtp data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		r.logger.Warn("smtp quit error (non-fatal)", "error", err)
	}

	r.logger.Info("join invitation sent",
		"to", inv.Email,
		"call_id", inv.CallID,
		"tenant_id", inv.TenantID,
	)
	return nil
}

func buildMessage(from string, inv Invitation) []byte {
	var b strings.Builder
	name := inv.DisplayName
	if name == "" {
		name = inv.Email
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", inv.Email)
	fmt.Fprintf(&b, "Subject: Convite: atendimento em Libras em andamento\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Olá %s,\r\n\r\n", name)
	b.WriteString("Você foi convidado a participar de um atendimento em Libras em andamento.\r\n\r\n")
	fmt.Fprintf(&b, "Acesse a sala: %s\r\n\r\n", inv.RoomURL)
	b.WriteString("Este link é válido apenas enquanto o atendimento estiver ativo.\r\n")
	return []byte(b.String())
}

func defaultDial(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error) {
	const dialTimeout = 10 * time.Second

	if strings.EqualFold(tlsMode, "tls") {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: dialTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		host, _, _ := net.SplitHostPort(addr)
		return smtp.NewClient(conn, host)
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	return smtp.NewClient(conn, host)
}
