package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingStatus string

const (
	MeetingStatusPending   MeetingStatus = "pending"
	MeetingStatusAccepted  MeetingStatus = "accepted"
	MeetingStatusDeclined  MeetingStatus = "declined"
	MeetingStatusCompleted MeetingStatus = "completed"
	MeetingStatusCancelled MeetingStatus = "cancelled"
	MeetingStatusNoShow    MeetingStatus = "no_show"
)

type MeetingEvent string

const (
	MeetingEventAccept   MeetingEvent = "accept"
	MeetingEventDecline  MeetingEvent = "decline"
	MeetingEventComplete MeetingEvent = "complete"
	MeetingEventCancel   MeetingEvent = "cancel"
	MeetingEventNoShow   MeetingEvent = "no_show"
)

func (s MeetingStatus) Terminal() bool {
	switch s {
	case MeetingStatusDeclined, MeetingStatusCompleted, MeetingStatusCancelled, MeetingStatusNoShow:
		return true
	}
	return false
}

// Next is the meeting transition function.
func (s MeetingStatus) Next(ev MeetingEvent) (MeetingStatus, bool) {
	switch s {
	case MeetingStatusPending:
		switch ev {
		case MeetingEventAccept:
			return MeetingStatusAccepted, true
		case MeetingEventDecline:
			return MeetingStatusDeclined, true
		}
	case MeetingStatusAccepted:
		switch ev {
		case MeetingEventComplete:
			return MeetingStatusCompleted, true
		case MeetingEventCancel:
			return MeetingStatusCancelled, true
		case MeetingEventNoShow:
			return MeetingStatusNoShow, true
		}
	case MeetingStatusDeclined, MeetingStatusCompleted, MeetingStatusCancelled, MeetingStatusNoShow:
	}
	return s, false
}

// RecipientOnly reports whether only the developer may fire ev.
func (ev MeetingEvent) RecipientOnly() bool {
	switch ev {
	case MeetingEventAccept, MeetingEventDecline, MeetingEventComplete, MeetingEventNoShow:
		return true
	}
	return false
}

type MeetingRequest struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"investor_id"`
	DeveloperID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"developer_id"`
	ProjectID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Subject       string         `gorm:"not null" json:"subject"`
	Agenda        string         `gorm:"type:text" json:"agenda"`
	ProposedTimes string         `gorm:"type:text" json:"proposed_times,omitempty"`
	Status        MeetingStatus  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	MeetingLink   string         `json:"meeting_link,omitempty"`
	DeclineReason string         `gorm:"type:text" json:"decline_reason,omitempty"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Investor  *User     `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Developer *User     `gorm:"foreignKey:DeveloperID" json:"developer,omitempty"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Messages  []Message `gorm:"foreignKey:MeetingID" json:"messages,omitempty"`
}

func (m *MeetingRequest) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MeetingStatusPending
	}
	return nil
}

// IsParticipant reports whether userID is the investor or developer on the meeting.
func (m *MeetingRequest) IsParticipant(userID uuid.UUID) bool {
	return m.InvestorID == userID || m.DeveloperID == userID
}

// Counterpart returns the other participant's id.
func (m *MeetingRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.InvestorID == userID {
		return m.DeveloperID
	}
	return m.InvestorID
}

// Accept schedules the meeting. Only pending requests can be accepted.
func (m *MeetingRequest) Accept(scheduledAt time.Time, link string, at time.Time) bool {
	next, ok := m.Status.Next(MeetingEventAccept)
	if !ok {
		return false
	}
	m.Status = next
	m.ScheduledAt = &scheduledAt
	m.MeetingLink = link
	m.RespondedAt = &at
	return true
}

// Decline records the optional reason.
func (m *MeetingRequest) Decline(reason string, at time.Time) bool {
	next, ok := m.Status.Next(MeetingEventDecline)
	if !ok {
		return false
	}
	m.Status = next
	m.DeclineReason = reason
	m.RespondedAt = &at
	return true
}

// Close applies complete, cancel or no_show.
func (m *MeetingRequest) Close(ev MeetingEvent, at time.Time) bool {
	if ev == MeetingEventAccept || ev == MeetingEventDecline {
		return false
	}
	next, ok := m.Status.Next(ev)
	if !ok {
		return false
	}
	m.Status = next
	m.ClosedAt = &at
	return true
}

// Message belongs to exactly one meeting thread and is never edited.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID uuid.UUID  `gorm:"type:uuid;not null;index" json:"meeting_id"`
	SenderID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"sender_id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
