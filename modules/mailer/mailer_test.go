package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/baseapp/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func capture(out *[]sent) SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*out = append(*out, sent{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return nil
	}
}

func mailConfig() config.MailConfig {
	return config.MailConfig{Host: "smtp.example.com", Port: 587, From: "Base App <noreply@example.com>"}
}

func TestMailer_SendAlert(t *testing.T) {
	var out []sent
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m, err := New(mailConfig(), Templates(), WithSendFunc(capture(&out)), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	err = m.Send(context.Background(), "Algo está mal!", "admin@example.com", "error", map[string]any{"log": "[alert] <db down>"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Nil(t, got.auth)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"admin@example.com"}, got.to)
	assert.Contains(t, got.msg, "To: <admin@example.com>\r\n")
	assert.Contains(t, got.msg, "Subject: =?utf-8?q?Algo_est=C3=A1_mal!?=\r\n")
	assert.Contains(t, got.msg, "Date: Fri, 01 Mar 2024 10:00:00 +0000\r\n")
	assert.Contains(t, got.msg, "@example.com>\r\n")
	assert.Contains(t, got.msg, "[alert] &lt;db down&gt;")
	assert.NotContains(t, strings.ReplaceAll(got.msg, "\r\n", ""), "\n")
}

func TestMailer_Auth(t *testing.T) {
	var out []sent
	cfg := mailConfig()
	cfg.Username, cfg.Password = "mailer", "secret"
	m, err := New(cfg, Templates(), WithSendFunc(capture(&out)))
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), "hi", "ops@example.com", "plain", map[string]any{"body": "hello"}))
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].auth)
}

func TestMailer_Errors(t *testing.T) {
	failing := WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	})
	m, err := New(mailConfig(), Templates(), failing)
	require.NoError(t, err)

	tests := []struct {
		name      string
		recipient string
		template  string
		ctx       func() context.Context
		wantErr   error
		wantMsg   string
	}{
		{name: "bad recipient", recipient: "not an address", template: "error", ctx: context.Background, wantErr: ErrInvalidRecipient},
		{name: "unknown template", recipient: "a@example.com", template: "missing", ctx: context.Background, wantErr: ErrUnknownTemplate},
		{
			name: "cancelled", recipient: "a@example.com", template: "error",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
		{name: "transport", recipient: "a@example.com", template: "error", ctx: context.Background, wantMsg: "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Send(tt.ctx(), "s", tt.recipient, tt.template, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNew_InvalidSender(t *testing.T) {
	cfg := mailConfig()
	cfg.From = "@@"
	_, err := New(cfg, Templates())
	assert.ErrorIs(t, err, ErrInvalidSender)
}
