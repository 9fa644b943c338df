package invite

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/smtp"
	"os"
	"strings"
	"testing"

	"libras-central/internal/config"
)

// mockSMTPClient implements smtpClient for testing.
type mockSMTPClient struct {
	helloCalled bool
	tlsCalled   bool
	authCalled  bool
	mailFrom    string
	rcptTo      string
	dataWritten []byte
	quitCalled  bool
	closeCalled bool
	rcptErr     error
}

func (m *mockSMTPClient) Hello(_ string) error { m.helloCalled = true; return nil }
func (m *mockSMTPClient) Extension(ext string) (bool, string) {
	return ext == "STARTTLS", ""
}
func (m *mockSMTPClient) StartTLS(_ *tls.Config) error { m.tlsCalled = true; return nil }
func (m *mockSMTPClient) Auth(_ smtp.Auth) error       { m.authCalled = true; return nil }
func (m *mockSMTPClient) Mail(from string) error       { m.mailFrom = from; return nil }
func (m *mockSMTPClient) Rcpt(to string) error         { m.rcptTo = to; return m.rcptErr }
func (m *mockSMTPClient) Data() (io.WriteCloser, error) {
	return &mockWriteCloser{mock: m}, nil
}
func (m *mockSMTPClient) Quit() error  { m.quitCalled = true; return nil }
func (m *mockSMTPClient) Close() error { m.closeCalled = true; return nil }

type mockWriteCloser struct{ mock *mockSMTPClient }

func (w *mockWriteCloser) Write(p []byte) (int, error) {
	w.mock.dataWritten = append(w.mock.dataWritten, p...)
	return len(p), nil
}
func (w *mockWriteCloser) Close() error { return nil }

func newTestRelay(mock *mockSMTPClient) *Relay {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRelay(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "noreply@example.com",
		Username: "user",
		Password: "pass",
		TLSMode:  "starttls",
	}, logger)
	r.dialFunc = func(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error) {
		return mock, nil
	}
	return r
}

func validInvitation() Invitation {
	return Invitation{
		CallID:      "c1",
		TenantID:    "t1",
		Email:       "rh@example.com",
		DisplayName: "RH",
		RoomURL:     "https://meet.example.com/call-c1",
	}
}

func TestSend_DeliversInvitation(t *testing.T) {
	mock := &mockSMTPClient{}
	r := newTestRelay(mock)

	if err := r.Send(context.Background(), validInvitation()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if !mock.helloCalled || !mock.tlsCalled || !mock.authCalled {
		t.Fatalf("expected hello/starttls/auth, got %+v", mock)
	}
	if mock.mailFrom != "noreply@example.com" {
		t.Fatalf("unexpected mail from %q", mock.mailFrom)
	}
	if mock.rcptTo != "rh@example.com" {
		t.Fatalf("unexpected rcpt %q", mock.rcptTo)
	}
	body := string(mock.dataWritten)
	if !strings.Contains(body, "https://meet.example.com/call-c1") {
		t.Fatalf("expected room url in body:\n%s", body)
	}
}

func TestSend_RejectsInvalidAddress(t *testing.T) {
	r := newTestRelay(&mockSMTPClient{})
	inv := validInvitation()
	inv.Email = "not-an-address"
	if err := r.Send(context.Background(), inv); err != ErrInvalidAddress {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestSend_UnconfiguredSMTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	r := NewRelay(config.SMTPConfig{}, logger)
	if err := r.Send(context.Background(), validInvitation()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
