package services

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
)

func TestEmailSendBuildsAlternativeMessage(t *testing.T) {
	t.Cleanup(logger.SetForTest(zap.NewNop()))
	cfg := testConfig()
	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPPort = 2525
	cfg.FromEmail = "noreply@example.com"

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	svc := NewEmailService(cfg)
	svc.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	user := &models.User{Email: "ada@example.com", FirstName: "Ada"}
	err := svc.Send(user, Notice{
		Subject:    "Offer signed",
		Body:       "The founder signed <your> note.\n\nIt will execute shortly.",
		ActionPath: "/safe-notes/1",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Offer signed\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "Open AngelMatch: http://localhost:8080/safe-notes/1")
	assert.Contains(t, msg, "signed &lt;your&gt; note.")
	assert.Contains(t, msg, "Hi Ada,")
}

func TestEmailSendWithoutSMTPOnlyLogs(t *testing.T) {
	t.Cleanup(logger.SetForTest(zap.NewNop()))
	svc := NewEmailService(testConfig())
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("smtp must not be used")
		return nil
	}
	require.NoError(t, svc.Send(&models.User{Email: "a@example.com"}, Notice{Subject: "hi"}))
}

func TestNotifyRecoversFromPanics(t *testing.T) {
	t.Cleanup(logger.SetForTest(zap.NewNop()))
	cfg := testConfig()
	cfg.SMTPHost = "smtp.example.com"
	email := NewEmailService(cfg)

	var delivered []string
	email.sendMail = func(_ string, _ smtp.Auth, _ string, to []string, _ []byte) error {
		if to[0] == "boom@example.com" {
			panic("smtp exploded")
		}
		delivered = append(delivered, to[0])
		return nil
	}
	svc := NewNotificationService(cfg, email)

	svc.Notify(&models.User{Email: "boom@example.com"}, Notice{Subject: "one"})
	svc.Wait()
	svc.Notify(&models.User{Email: "ok@example.com"}, Notice{Subject: "two"})
	svc.Notify(nil, Notice{Subject: "dropped"})
	svc.Wait()

	assert.Equal(t, []string{"ok@example.com"}, delivered)
}
