// Package entitlement decides what an investor may see of a project and what they must do
// next. It holds no state; callers build a fresh Snapshot every time they decide.
package entitlement

import (
	"fmt"

	"github.com/google/uuid"
)

// State is the access state presented for a project.
type State string

const (
	StateLockedNoNDA         State = "locked_no_nda"
	StateLockedNeedsAddendum State = "locked_needs_addendum"
	StateLockedNeedsPayment  State = "locked_needs_payment"
	StateEligible            State = "eligible"
	StateUnlocked            State = "unlocked"
)

// ActionKind names the next step offered to the investor.
type ActionKind string

const (
	ActionSignNDA      ActionKind = "sign_nda"
	ActionSignAddendum ActionKind = "sign_addendum"
	ActionPurchase     ActionKind = "purchase"
	ActionUnlock       ActionKind = "unlock"
	ActionView         ActionKind = "view"
)

const (
	RouteSignNDA  = "/api/nda/sign"
	RoutePurchase = "/api/payments/checkout"
)

// Snapshot is an investor's entitlement for one project at one instant.
type Snapshot struct {
	ProjectID       uuid.UUID `json:"project_id"`
	MasterNDAValid  bool      `json:"master_nda_valid"`
	RequireAddendum bool      `json:"require_addendum"`
	AddendumSigned  bool      `json:"addendum_signed"`
	ViewsRemaining  int       `json:"views_remaining"`
	ExistingUnlock  bool      `json:"existing_unlock"`
}

// NextAction is the API route that advances the investor, plus where to return afterwards.
type NextAction struct {
	Kind     ActionKind `json:"kind"`
	Method   string     `json:"method"`
	Route    string     `json:"route"`
	ReturnTo string     `json:"return_to,omitempty"`
}

type Decision struct {
	State         State      `json:"state"`
	HasAccess     bool       `json:"has_access"`
	NeedsNDA      bool       `json:"needs_nda"`
	NeedsAddendum bool       `json:"needs_addendum"`
	NeedsPayment  bool       `json:"needs_payment"`
	Next          NextAction `json:"next_action"`
}

// CanUnlock reports whether invoking unlock is expected to succeed.
func (d Decision) CanUnlock() bool { return d.State == StateEligible }

// Decide evaluates the gates in order: existing unlock, master NDA, addendum, credits.
// An existing unlock wins over everything else, including a negative balance.
func Decide(s Snapshot) Decision {
	project := ProjectRoute(s.ProjectID)

	if s.ExistingUnlock {
		return Decision{
			State:     StateUnlocked,
			HasAccess: true,
			Next:      NextAction{Kind: ActionView, Method: "GET", Route: project},
		}
	}
	if !s.MasterNDAValid {
		return Decision{
			State:    StateLockedNoNDA,
			NeedsNDA: true,
			Next:     NextAction{Kind: ActionSignNDA, Method: "POST", Route: RouteSignNDA, ReturnTo: project},
		}
	}
	if s.RequireAddendum && !s.AddendumSigned {
		return Decision{
			State:         StateLockedNeedsAddendum,
			NeedsAddendum: true,
			Next:          NextAction{Kind: ActionSignAddendum, Method: "POST", Route: project + "/addendum/sign", ReturnTo: project},
		}
	}
	if s.ViewsRemaining <= 0 {
		return Decision{
			State:        StateLockedNeedsPayment,
			NeedsPayment: true,
			Next:         NextAction{Kind: ActionPurchase, Method: "POST", Route: RoutePurchase, ReturnTo: project},
		}
	}
	return Decision{
		State: StateEligible,
		Next:  NextAction{Kind: ActionUnlock, Method: "POST", Route: project + "/unlock"},
	}
}

func ProjectRoute(id uuid.UUID) string {
	return fmt.Sprintf("/api/projects/%s", id)
}
