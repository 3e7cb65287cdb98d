package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

type MeetingHandler struct {
	meetingService *services.MeetingService
}

func NewMeetingHandler(meetingService *services.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetingService: meetingService}
}

type MeetingRequestInput struct {
	ProjectID     uuid.UUID `json:"project_id" binding:"required"`
	Subject       string    `json:"subject" binding:"required"`
	Agenda        string    `json:"agenda"`
	ProposedTimes string    `json:"proposed_times"`
}

// RequestMeeting opens a meeting request with a project's founder (investor only)
func (h *MeetingHandler) RequestMeeting(c *gin.Context) {
	var req MeetingRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.meetingService.Request(middleware.GetActor(c), services.MeetingInput{
		ProjectID:     req.ProjectID,
		Subject:       req.Subject,
		Agenda:        req.Agenda,
		ProposedTimes: req.ProposedTimes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Meeting requested", "meeting": m})
}

type AcceptMeetingRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	MeetingLink string    `json:"meeting_link"`
}

func (h *MeetingHandler) AcceptMeeting(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AcceptMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.meetingService.Accept(middleware.GetActor(c), id, req.ScheduledAt, req.MeetingLink)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting": m})
}

type DeclineMeetingRequest struct {
	Reason string `json:"reason"`
}

func (h *MeetingHandler) DeclineMeeting(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DeclineMeetingRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)

	m, err := h.meetingService.Decline(middleware.GetActor(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting": m})
}

// closeWith returns a handler firing ev on the :id meeting.
func (h *MeetingHandler) closeWith(ev models.MeetingEvent) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		m, err := h.meetingService.Close(middleware.GetActor(c), id, ev)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"meeting": m})
	}
}

func (h *MeetingHandler) CompleteMeeting() gin.HandlerFunc {
	return h.closeWith(models.MeetingEventComplete)
}

func (h *MeetingHandler) NoShowMeeting() gin.HandlerFunc {
	return h.closeWith(models.MeetingEventNoShow)
}

func (h *MeetingHandler) CancelMeeting() gin.HandlerFunc {
	return h.closeWith(models.MeetingEventCancel)
}

// ListMeetings returns the caller's meetings
func (h *MeetingHandler) ListMeetings(c *gin.Context) {
	meetings, err := h.meetingService.List(middleware.GetActor(c), models.MeetingStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings, "total": len(meetings)})
}

func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.meetingService.Get(middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting": m})
}

// GetMessages returns the thread and marks it read for the caller
func (h *MeetingHandler) GetMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.meetingService.Messages(middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MeetingHandler) SendMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.meetingService.SendMessage(middleware.GetActor(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *MeetingHandler) UnreadCount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	n, err := h.meetingService.UnreadCount(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
