package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
)

// Notice is a channel-neutral message to one user.
type Notice struct {
	Subject     string
	Body        string
	ActionPath  string
	ActionLabel string
}

// Notifier delivers notices without blocking the caller.
type Notifier interface {
	Notify(to *models.User, n Notice)
}

type TelegramService struct {
	bot *bot.Bot
}

// NewTelegramService returns nil when no token is configured.
func NewTelegramService(token string) (*TelegramService, error) {
	if token == "" {
		return nil, nil
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	return &TelegramService{bot: b}, nil
}

func (t *TelegramService) Send(ctx context.Context, chatID, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

type NotificationService struct {
	email    *EmailService
	telegram *TelegramService
	wg       sync.WaitGroup
}

func NewNotificationService(cfg *config.Config, email *EmailService) *NotificationService {
	tg, err := NewTelegramService(cfg.TelegramBotToken)
	if err != nil {
		logger.L().Warn("telegram disabled", zap.Error(err))
	}
	return &NotificationService{email: email, telegram: tg}
}

// Notify sends n by email and, when the user has linked a chat, by telegram.
func (s *NotificationService) Notify(to *models.User, n Notice) {
	if to == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.safeCall("email", to, func() error { return s.email.Send(to, n) })
		if s.telegram != nil && to.TelegramChatID != "" {
			s.safeCall("telegram", to, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return s.telegram.Send(ctx, to.TelegramChatID, n.Subject+"\n\n"+n.Body)
			})
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) safeCall(channel string, to *models.User, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("notification panic", zap.String("channel", channel), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		logger.L().Warn("notification failed",
			zap.String("channel", channel),
			zap.String("user_id", to.ID.String()),
			zap.Error(err),
		)
	}
}

func offerSentNotice(note *models.SAFENote, project *models.Project, investor *models.User) Notice {
	return Notice{
		Subject:     fmt.Sprintf("New SAFE offer for %s", project.Title),
		Body:        fmt.Sprintf("%s sent you a SAFE offer of %.2f for %s.\nReview the terms and sign from your dashboard.", investor.FullName(), note.InvestmentAmount, project.Title),
		ActionPath:  "/safe-notes/" + note.ID.String(),
		ActionLabel: "Review offer",
	}
}

func offerSignedNotice(note *models.SAFENote, project *models.Project, signer *models.User) Notice {
	return Notice{
		Subject:     fmt.Sprintf("SAFE note for %s signed", project.Title),
		Body:        fmt.Sprintf("%s signed the SAFE note for %s.", signer.FullName(), project.Title),
		ActionPath:  "/safe-notes/" + note.ID.String(),
		ActionLabel: "View SAFE note",
	}
}

func safeExecutedNotice(note *models.SAFENote, project *models.Project) Notice {
	return Notice{
		Subject:     fmt.Sprintf("SAFE agreement executed for %s", project.Title),
		Body:        fmt.Sprintf("The SAFE note for %s has been signed by both parties and executed.\nYou can download the signed document from your dashboard.", project.Title),
		ActionPath:  "/safe-notes/" + note.ID.String(),
		ActionLabel: "Download",
	}
}

func safeCancelledNotice(note *models.SAFENote, project *models.Project) Notice {
	return Notice{
		Subject:    fmt.Sprintf("SAFE note for %s cancelled", project.Title),
		Body:       fmt.Sprintf("The SAFE note for %s was cancelled.\nReason: %s", project.Title, note.CancellationReason),
		ActionPath: "/safe-notes/" + note.ID.String(),
	}
}

func meetingRequestedNotice(m *models.MeetingRequest, project *models.Project, investor *models.User) Notice {
	return Notice{
		Subject:     fmt.Sprintf("Meeting request for %s", project.Title),
		Body:        fmt.Sprintf("%s would like to meet about %s.\nSubject: %s", investor.FullName(), project.Title, m.Subject),
		ActionPath:  "/meetings/" + m.ID.String(),
		ActionLabel: "Respond",
	}
}

func meetingUpdatedNotice(m *models.MeetingRequest) Notice {
	body := fmt.Sprintf("Your meeting %q is now %s.", m.Subject, m.Status)
	if m.Status == models.MeetingStatusAccepted && m.ScheduledAt != nil {
		body += "\nScheduled for " + m.ScheduledAt.UTC().Format(time.RFC1123)
		if m.MeetingLink != "" {
			body += "\nLink: " + m.MeetingLink
		}
	}
	if m.Status == models.MeetingStatusDeclined && m.DeclineReason != "" {
		body += "\nReason: " + m.DeclineReason
	}
	return Notice{
		Subject:    fmt.Sprintf("Meeting %s", m.Status),
		Body:       body,
		ActionPath: "/meetings/" + m.ID.String(),
	}
}

func projectReviewedNotice(project *models.Project) Notice {
	if project.Status == models.ProjectStatusApproved {
		return Notice{
			Subject:    "Your project has been approved",
			Body:       fmt.Sprintf("%s is approved and now visible to investors.", project.Title),
			ActionPath: "/developer/projects",
		}
	}
	return Notice{
		Subject:    "Your project requires changes",
		Body:       fmt.Sprintf("%s requires changes before it can be published.\nFeedback: %s", project.Title, project.RejectionReason),
		ActionPath: "/developer/projects",
	}
}
