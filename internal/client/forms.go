package client

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterForm is the sign-up form; ConfirmPassword is checked locally only.
type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=investor developer"`
	Phone           string `json:"phone,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
}

// SignForm signs the master NDA or a project addendum.
type SignForm struct {
	SignedName    string `json:"signed_name" validate:"required"`
	SignatureData string `json:"signature_data" validate:"required"`
	Agreed        bool   `json:"agreed" validate:"required"`
}

// AcceptForm is the founder's answer to a meeting request.
type AcceptForm struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	MeetingLink string    `json:"meeting_link,omitempty" validate:"omitempty,url"`
}

type MeetingForm struct {
	ProjectID     string `json:"project_id" validate:"required,uuid"`
	Subject       string `json:"subject" validate:"required"`
	Agenda        string `json:"agenda,omitempty"`
	ProposedTimes string `json:"proposed_times,omitempty"`
}

func check(form any) error {
	if err := validate.Struct(form); err != nil {
		return fromValidator(err)
	}
	return nil
}
