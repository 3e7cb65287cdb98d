package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/entitlement"
	"github.com/ukuvago/angelmatch/internal/models"
)

type AuthResult struct {
	User  models.UserResponse `json:"user"`
	Token string              `json:"token"`
}

// Login stores the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, &ValidationError{Violations: models.Violations{{Field: "credentials", Message: "email and password are required"}}}
	}
	var out AuthResult
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      map[string]string{"email": email, "password": password},
		out:       &out,
		anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, c.tokens.SetToken(out.Token)
}

func (c *Client) Register(ctx context.Context, form RegisterForm) (*AuthResult, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	var out AuthResult
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/register", body: form, out: &out, anonymous: true})
	if err != nil {
		return nil, err
	}
	return &out, c.tokens.SetToken(out.Token)
}

func (c *Client) Logout() error {
	return c.tokens.Clear()
}

func (c *Client) Me(ctx context.Context) (*models.UserResponse, error) {
	var out struct {
		User models.UserResponse `json:"user"`
	}
	if err := c.get(ctx, "/api/auth/me", &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Projects

func (c *Client) ListProjects(ctx context.Context, search string) ([]models.ProjectPublicInfo, error) {
	path := "/api/projects"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var out struct {
		Projects []models.ProjectPublicInfo `json:"projects"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// ProjectView is either the teaser or the full project, depending on FullAccess.
type ProjectView struct {
	Project    models.Project        `json:"project"`
	FullAccess bool                  `json:"full_access"`
	Access     *entitlement.Decision `json:"access,omitempty"`
}

func (c *Client) Project(ctx context.Context, id uuid.UUID) (*ProjectView, error) {
	var out ProjectView
	if err := c.get(ctx, "/api/projects/"+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Access is the server's answer to the unlock question plus the snapshot it decided from.
type Access struct {
	ProjectID      uuid.UUID              `json:"project_id"`
	State          entitlement.State      `json:"state"`
	HasAccess      bool                   `json:"has_access"`
	NeedsNDA       bool                   `json:"needs_nda"`
	NeedsAddendum  bool                   `json:"needs_addendum"`
	NeedsPayment   bool                   `json:"needs_payment"`
	CanUnlock      bool                   `json:"can_unlock"`
	Next           entitlement.NextAction `json:"next_action"`
	ViewsRemaining int                    `json:"views_remaining"`
	Snapshot       entitlement.Snapshot   `json:"snapshot"`
}

func (c *Client) Access(ctx context.Context, projectID uuid.UUID) (*Access, error) {
	var out Access
	if err := c.get(ctx, "/api/projects/"+projectID.String()+"/access", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type UnlockResult struct {
	Unlock         *models.ProjectUnlock `json:"unlock"`
	ViewsRemaining int                   `json:"views_remaining"`
	Created        bool                  `json:"created"`
}

func (c *Client) unlock(ctx context.Context, projectID uuid.UUID, idemKey string) (*UnlockResult, error) {
	var out UnlockResult
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/projects/" + projectID.String() + "/unlock",
		out:     &out,
		idemKey: idemKey,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadLogo sends r as the project's logo using multipart form encoding.
func (c *Client) UploadLogo(ctx context.Context, projectID uuid.UUID, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("logo", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		LogoURL string `json:"logo_url"`
	}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/developer/projects/" + projectID.String() + "/logo",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
		out:         &out,
	})
	return out.LogoURL, err
}

// NDA

type NDAStatus struct {
	Signed    bool       `json:"signed"`
	Valid     bool       `json:"is_valid"`
	Version   string     `json:"version,omitempty"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (c *Client) NDAStatus(ctx context.Context) (*NDAStatus, error) {
	var out NDAStatus
	if err := c.get(ctx, "/api/nda/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignNDA(ctx context.Context, form SignForm) error {
	if err := check(form); err != nil {
		return err
	}
	return c.post(ctx, "/api/nda/sign", form, nil)
}

func (c *Client) SignAddendum(ctx context.Context, projectID uuid.UUID, form SignForm) error {
	if err := check(form); err != nil {
		return err
	}
	return c.post(ctx, "/api/projects/"+projectID.String()+"/addendum/sign", form, nil)
}

// Payments and dashboard

type Dashboard struct {
	Package          models.PackageSummary           `json:"package"`
	NDA              NDAStatus                       `json:"nda"`
	UnlockedProjects int64                           `json:"unlocked_projects"`
	PendingMeetings  int64                           `json:"pending_meetings"`
	UnreadMessages   int64                           `json:"unread_messages"`
	SAFENotes        map[models.SAFENoteStatus]int64 `json:"safe_notes"`
}

func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var out struct {
		Dashboard Dashboard `json:"dashboard"`
	}
	if err := c.get(ctx, "/api/investor/dashboard", &out); err != nil {
		return nil, err
	}
	return &out.Dashboard, nil
}

type Checkout struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	CheckoutURL string    `json:"checkout_url"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Views       int       `json:"views"`
}

func (c *Client) Checkout(ctx context.Context) (*Checkout, error) {
	var out Checkout
	if err := c.post(ctx, "/api/payments/checkout", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment settles a checkout; stripePaymentID may be empty in demo mode.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID uuid.UUID, stripePaymentID string) (*models.PackageSummary, error) {
	var out struct {
		Package models.PackageSummary `json:"package"`
	}
	body := map[string]any{"payment_id": paymentID, "stripe_payment_id": stripePaymentID}
	if err := c.post(ctx, "/api/payments/confirm", body, &out); err != nil {
		return nil, err
	}
	return &out.Package, nil
}

// SAFE notes

type OfferInput struct {
	ProjectID uuid.UUID        `json:"project_id"`
	Terms     models.SAFETerms `json:"-"`
	Notes     string           `json:"notes,omitempty"`
}

func (in OfferInput) body() map[string]any {
	return map[string]any{
		"project_id":        in.ProjectID,
		"investment_amount": in.Terms.InvestmentAmount,
		"valuation_cap":     in.Terms.ValuationCap,
		"discount_rate":     in.Terms.DiscountRate,
		"is_mfn":            in.Terms.IsMFN,
		"pro_rata_rights":   in.Terms.ProRataRights,
		"notes":             in.Notes,
	}
}

type noteEnvelope struct {
	Note models.SAFENote `json:"safe_note"`
}

// CreateOffer validates the terms locally, then against the project's range, and only
// then drafts the note. Terms failing the local rules never reach the backend.
func (c *Client) CreateOffer(ctx context.Context, in OfferInput) (*models.SAFENote, error) {
	if err := models.ValidateOffer(in.Terms, 0, 0); err != nil {
		return nil, fromOffer(err)
	}
	view, err := c.Project(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	lo, hi := view.Project.InvestmentRange()
	if err := models.ValidateOffer(in.Terms, lo, hi); err != nil {
		return nil, fromOffer(err)
	}

	var out noteEnvelope
	if err := c.post(ctx, "/api/safe-notes", in.body(), &out); err != nil {
		return nil, err
	}
	return &out.Note, nil
}

func (c *Client) Offer(ctx context.Context, id uuid.UUID) (*models.SAFENote, error) {
	var out noteEnvelope
	if err := c.get(ctx, "/api/safe-notes/"+id.String(), &out); err != nil {
		return nil, err
	}
	return &out.Note, nil
}

func (c *Client) ListOffers(ctx context.Context, status models.SAFENoteStatus) ([]models.SAFENote, error) {
	path := "/api/safe-notes"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Notes []models.SAFENote `json:"safe_notes"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

func (c *Client) noteAction(ctx context.Context, id uuid.UUID, action string, body any) (*models.SAFENote, error) {
	v, err := c.once(ctx, "safe:"+action+":"+id.String(), func(ctx context.Context) (any, error) {
		var out noteEnvelope
		if err := c.post(ctx, "/api/safe-notes/"+id.String()+"/"+action, body, &out); err != nil {
			return nil, err
		}
		return &out.Note, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SAFENote), nil
}

// SendOffer re-validates the draft's terms before sending.
func (c *Client) SendOffer(ctx context.Context, id uuid.UUID) (*models.SAFENote, error) {
	note, err := c.Offer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateOffer(note.Terms(), 0, 0); err != nil {
		return nil, fromOffer(err)
	}
	return c.noteAction(ctx, id, "send", nil)
}

func (c *Client) SignOffer(ctx context.Context, id uuid.UUID, signature string) (*models.SAFENote, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, &ValidationError{Violations: models.Violations{{Field: "signature", Message: "is required"}}}
	}
	return c.noteAction(ctx, id, "sign", map[string]string{"signature": signature})
}

func (c *Client) CancelOffer(ctx context.Context, id uuid.UUID, reason string) (*models.SAFENote, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Violations: models.Violations{{Field: "reason", Message: "is required"}}}
	}
	return c.noteAction(ctx, id, "cancel", map[string]string{"reason": reason})
}

// Meetings and messages

type meetingEnvelope struct {
	Meeting models.MeetingRequest `json:"meeting"`
}

func (c *Client) RequestMeeting(ctx context.Context, form MeetingForm) (*models.MeetingRequest, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	var out meetingEnvelope
	if err := c.post(ctx, "/api/meetings", form, &out); err != nil {
		return nil, err
	}
	return &out.Meeting, nil
}

func (c *Client) meetingAction(ctx context.Context, id uuid.UUID, action string, body any) (*models.MeetingRequest, error) {
	v, err := c.once(ctx, "meeting:"+action+":"+id.String(), func(ctx context.Context) (any, error) {
		var out meetingEnvelope
		if err := c.post(ctx, "/api/meetings/"+id.String()+"/"+action, body, &out); err != nil {
			return nil, err
		}
		return &out.Meeting, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MeetingRequest), nil
}

func (c *Client) AcceptMeeting(ctx context.Context, id uuid.UUID, form AcceptForm) (*models.MeetingRequest, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	return c.meetingAction(ctx, id, "accept", form)
}

func (c *Client) DeclineMeeting(ctx context.Context, id uuid.UUID, reason string) (*models.MeetingRequest, error) {
	return c.meetingAction(ctx, id, "decline", map[string]string{"reason": reason})
}

// CloseMeeting fires complete, no_show or cancel.
func (c *Client) CloseMeeting(ctx context.Context, id uuid.UUID, ev models.MeetingEvent) (*models.MeetingRequest, error) {
	switch ev {
	case models.MeetingEventComplete:
		return c.meetingAction(ctx, id, "complete", nil)
	case models.MeetingEventNoShow:
		return c.meetingAction(ctx, id, "no-show", nil)
	case models.MeetingEventCancel:
		return c.meetingAction(ctx, id, "cancel", nil)
	}
	return nil, &ValidationError{Violations: models.Violations{{Field: "event", Message: fmt.Sprintf("%q does not close a meeting", ev)}}}
}

func (c *Client) ListMeetings(ctx context.Context, status models.MeetingStatus) ([]models.MeetingRequest, error) {
	path := "/api/meetings"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Meetings []models.MeetingRequest `json:"meetings"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Meetings, nil
}

// Thread loads every message once; the server marks inbound ones read.
func (c *Client) Thread(ctx context.Context, meetingID uuid.UUID) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.get(ctx, "/api/meetings/"+meetingID.String()+"/messages", &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, meetingID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Violations: models.Violations{{Field: "content", Message: "is required"}}}
	}
	var out struct {
		Message models.Message `json:"message"`
	}
	if err := c.post(ctx, "/api/meetings/"+meetingID.String()+"/messages", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Unread int64 `json:"unread"`
	}
	err := c.get(ctx, "/api/messages/unread-count", &out)
	return out.Unread, err
}

// Commissions (admin)

type CommissionPage struct {
	Items   []models.Commission      `json:"items"`
	Total   int64                    `json:"total"`
	Page    int                      `json:"page"`
	Limit   int                      `json:"limit"`
	Summary models.CommissionSummary `json:"summary"`
}

// Commissions fetches one page. Its Summary is recomputed from the loaded items and is
// always scoped to the page; use CommissionTotals for global figures.
func (c *Client) Commissions(ctx context.Context, status models.CommissionStatus, page, limit int) (*CommissionPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if status != "" {
		q.Set("status", string(status))
	}
	var out CommissionPage
	if err := c.get(ctx, "/api/admin/commissions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	out.Summary = models.SummarizePage(out.Items)
	return &out, nil
}

func (c *Client) CommissionTotals(ctx context.Context) (*models.CommissionSummary, error) {
	var out struct {
		Summary models.CommissionSummary `json:"summary"`
	}
	if err := c.get(ctx, "/api/admin/commissions/summary", &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

func (c *Client) MarkCommissionPaid(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	v, err := c.once(ctx, "commission:paid:"+id.String(), func(ctx context.Context) (any, error) {
		var out struct {
			Commission models.Commission `json:"commission"`
		}
		if err := c.post(ctx, "/api/admin/commissions/"+id.String()+"/mark-paid", nil, &out); err != nil {
			return nil, err
		}
		return &out.Commission, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Commission), nil
}
