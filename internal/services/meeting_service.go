package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MeetingService struct {
	audit    *AuditService
	notifier Notifier
}

func NewMeetingService(audit *AuditService, notifier Notifier) *MeetingService {
	return &MeetingService{audit: audit, notifier: notifier}
}

type MeetingInput struct {
	ProjectID     uuid.UUID
	Subject       string
	Agenda        string
	ProposedTimes string
}

func loadMeeting(db *gorm.DB, id uuid.UUID) (*models.MeetingRequest, error) {
	var m models.MeetingRequest
	err := db.Preload("Project").Preload("Investor").Preload("Developer").First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("meeting")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// participantMeeting loads the meeting and hides it from anyone not on it.
func participantMeeting(db *gorm.DB, by Actor, id uuid.UUID) (*models.MeetingRequest, error) {
	m, err := loadMeeting(db, id)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(by.ID) && by.Role != models.RoleAdmin {
		return nil, apperr.NotFound("meeting")
	}
	return m, nil
}

// Request opens a meeting with the project's founder. The project must be unlocked.
func (s *MeetingService) Request(by Actor, in MeetingInput) (*models.MeetingRequest, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Subject is required")
	}
	db := database.GetDB()

	project, err := approvedProject(db, in.ProjectID)
	if err != nil {
		return nil, err
	}
	unlock, err := findUnlock(db, by.ID, project.ID)
	if err != nil {
		return nil, err
	}
	if unlock == nil {
		return nil, apperr.New(apperr.CodeForbidden, "Unlock the project before requesting a meeting")
	}

	m := &models.MeetingRequest{
		InvestorID:    by.ID,
		DeveloperID:   project.DeveloperID,
		ProjectID:     project.ID,
		Subject:       strings.TrimSpace(in.Subject),
		Agenda:        in.Agenda,
		ProposedTimes: in.ProposedTimes,
		Status:        models.MeetingStatusPending,
	}
	if err := db.Create(m).Error; err != nil {
		return nil, err
	}
	if m, err = loadMeeting(db, m.ID); err != nil {
		return nil, err
	}

	s.notifier.Notify(m.Developer, meetingRequestedNotice(m, m.Project, m.Investor))
	return m, nil
}

// respond applies a mutation built from the meeting model and persists it conditionally.
func (s *MeetingService) respond(by Actor, id uuid.UUID, ev models.MeetingEvent, apply func(m *models.MeetingRequest, now time.Time) bool) (*models.MeetingRequest, error) {
	db := database.GetDB()
	m, err := participantMeeting(db, by, id)
	if err != nil {
		return nil, err
	}
	if ev.RecipientOnly() && m.DeveloperID != by.ID {
		return nil, apperr.New(apperr.CodeForbidden, "Only the founder can do that")
	}

	from := m.Status
	if !apply(m, time.Now()) {
		return nil, apperr.Transition("meeting", string(from), string(ev))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(m).Where("status = ?", from).Select("*").Omit(clause.Associations).Updates(m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeConflict, "Meeting changed concurrently")
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(by.ID),
			Action:     models.AuditMeetingTransition,
			EntityType: "meeting",
			EntityID:   m.ID,
			Metadata:   map[string]any{"from": from, "to": m.Status},
			IPAddress:  by.IP,
		})
	})
	if err != nil {
		return nil, err
	}

	other := m.Investor
	if by.ID == m.InvestorID {
		other = m.Developer
	}
	s.notifier.Notify(other, meetingUpdatedNotice(m))
	return m, nil
}

func (s *MeetingService) Accept(by Actor, id uuid.UUID, scheduledAt time.Time, link string) (*models.MeetingRequest, error) {
	if scheduledAt.IsZero() {
		return nil, apperr.New(apperr.CodeInvalid, "scheduled_at is required")
	}
	return s.respond(by, id, models.MeetingEventAccept, func(m *models.MeetingRequest, now time.Time) bool {
		return m.Accept(scheduledAt, strings.TrimSpace(link), now)
	})
}

func (s *MeetingService) Decline(by Actor, id uuid.UUID, reason string) (*models.MeetingRequest, error) {
	return s.respond(by, id, models.MeetingEventDecline, func(m *models.MeetingRequest, now time.Time) bool {
		return m.Decline(strings.TrimSpace(reason), now)
	})
}

// Close handles complete, no_show and cancel.
func (s *MeetingService) Close(by Actor, id uuid.UUID, ev models.MeetingEvent) (*models.MeetingRequest, error) {
	return s.respond(by, id, ev, func(m *models.MeetingRequest, now time.Time) bool {
		return m.Close(ev, now)
	})
}

// List returns the caller's meetings, newest first.
func (s *MeetingService) List(by Actor, status models.MeetingStatus) ([]models.MeetingRequest, error) {
	q := database.GetDB().Preload("Project").Preload("Investor").Preload("Developer")
	switch by.Role {
	case models.RoleInvestor:
		q = q.Where("investor_id = ?", by.ID)
	case models.RoleDeveloper:
		q = q.Where("developer_id = ?", by.ID)
	case models.RoleAdmin:
	default:
		return nil, apperr.ErrForbidden
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var meetings []models.MeetingRequest
	err := q.Order("created_at DESC").Find(&meetings).Error
	return meetings, err
}

func (s *MeetingService) Get(by Actor, id uuid.UUID) (*models.MeetingRequest, error) {
	return participantMeeting(database.GetDB(), by, id)
}

// Messages returns the whole thread in creation order and marks inbound messages read.
func (s *MeetingService) Messages(by Actor, id uuid.UUID) ([]models.Message, error) {
	db := database.GetDB()
	m, err := participantMeeting(db, by, id)
	if err != nil {
		return nil, err
	}

	if m.IsParticipant(by.ID) {
		if err := db.Model(&models.Message{}).
			Where("meeting_id = ? AND sender_id <> ? AND read_at IS NULL", m.ID, by.ID).
			Update("read_at", time.Now()).Error; err != nil {
			return nil, err
		}
	}

	var msgs []models.Message
	err = db.Preload("Sender").Where("meeting_id = ?", m.ID).Order("created_at ASC, id ASC").Find(&msgs).Error
	return msgs, err
}

// SendMessage appends to the thread. Messaging is open to both participants in any status.
func (s *MeetingService) SendMessage(by Actor, id uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Message content is required")
	}
	db := database.GetDB()
	m, err := loadMeeting(db, id)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(by.ID) {
		return nil, apperr.NotFound("meeting")
	}

	msg := &models.Message{MeetingID: m.ID, SenderID: by.ID, Content: content}
	if err := db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MeetingService) UnreadCount(userID uuid.UUID) (int64, error) {
	return unreadCount(database.GetDB(), userID)
}

// unreadCount counts messages sent to userID on any of their meetings and not yet read.
func unreadCount(db *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	err := db.Model(&models.Message{}).
		Joins("JOIN meeting_requests ON meeting_requests.id = messages.meeting_id").
		Where("(meeting_requests.investor_id = ? OR meeting_requests.developer_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.read_at IS NULL", userID).
		Where("meeting_requests.deleted_at IS NULL").
		Count(&n).Error
	return n, err
}
