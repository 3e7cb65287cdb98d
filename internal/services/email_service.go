package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
)

// EmailService delivers notices over SMTP. With SMTP_HOST unset it only logs.
type EmailService struct {
	config   *config.Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{config: cfg, sendMail: smtp.SendMail}
}

type noticeView struct {
	AppName     string
	Greeting    string
	Paragraphs  []string
	ActionURL   string
	ActionLabel string
}

var noticeHTML = template.Must(template.New("notice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.AppName}}</title></head>
<body style="font-family:Helvetica,Arial,sans-serif;color:#222;max-width:560px;margin:0 auto;padding:24px">
<h2 style="color:#1f3a5f;margin-top:0">{{.AppName}}</h2>
<p>{{.Greeting}}</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .ActionURL}}<p><a href="{{.ActionURL}}" style="background:#1f3a5f;color:#fff;padding:10px 22px;border-radius:4px;text-decoration:none">{{.ActionLabel}}</a></p>
{{end}}<p style="color:#888;font-size:12px">You are receiving this because you have an account on {{.AppName}}.</p>
</body>
</html>`))

// Send renders n for the recipient and delivers it.
func (s *EmailService) Send(to *models.User, n Notice) error {
	msg, err := s.buildMessage(to, n)
	if err != nil {
		return err
	}
	if s.config.SMTPHost == "" {
		logger.L().Info("email not sent, smtp disabled", zap.String("to", to.Email), zap.String("subject", n.Subject))
		return nil
	}

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	return s.sendMail(addr, auth, s.config.FromEmail, []string{to.Email}, msg)
}

// buildMessage produces a multipart/alternative message with a plain text
// part followed by the HTML part.
func (s *EmailService) buildMessage(to *models.User, n Notice) ([]byte, error) {
	view := noticeView{
		AppName:     s.config.AppName,
		Greeting:    "Hi " + strings.TrimSpace(to.FirstName) + ",",
		Paragraphs:  splitParagraphs(n.Body),
		ActionLabel: n.ActionLabel,
	}
	if n.ActionPath != "" {
		view.ActionURL = strings.TrimRight(s.config.AppURL, "/") + n.ActionPath
		if view.ActionLabel == "" {
			view.ActionLabel = "Open " + s.config.AppName
		}
	}

	var html bytes.Buffer
	if err := noticeHTML.Execute(&html, view); err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString(view.Greeting + "\r\n\r\n")
	for _, p := range view.Paragraphs {
		text.WriteString(p + "\r\n\r\n")
	}
	if view.ActionURL != "" {
		text.WriteString(view.ActionLabel + ": " + view.ActionURL + "\r\n")
	}

	boundary := "angelmatch-" + uuid.NewString()
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", s.config.FromEmail, to.Email, n.Subject)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, text.String())
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, html.String())
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes(), nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
