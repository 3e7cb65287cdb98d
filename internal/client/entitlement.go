package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/entitlement"
)

// ProjectEntitlement is the decision for one project together with the snapshot it was
// made from. It is never reused: every call to Evaluate fetches a fresh snapshot.
type ProjectEntitlement struct {
	Snapshot entitlement.Snapshot
	Decision entitlement.Decision
}

// UnlockError wraps a failed unlock with the balance re-read after the failure.
type UnlockError struct {
	Err     error
	Current *ProjectEntitlement
}

func (e *UnlockError) Error() string { return "unlock failed: " + e.Err.Error() }
func (e *UnlockError) Unwrap() error { return e.Err }

// Entitlements runs the unlock decision for an investor. It holds no cached state.
type Entitlements struct {
	c *Client
}

func (c *Client) Entitlements() *Entitlements {
	return &Entitlements{c: c}
}

// Evaluate fetches the current snapshot and decides from it. Call it again after any
// NDA signature, addendum or payment instead of adjusting an earlier result.
func (e *Entitlements) Evaluate(ctx context.Context, projectID uuid.UUID) (*ProjectEntitlement, error) {
	a, err := e.c.Access(ctx, projectID)
	if err != nil {
		return nil, err
	}
	snap := a.Snapshot
	snap.ProjectID = projectID
	return &ProjectEntitlement{Snapshot: snap, Decision: entitlement.Decide(snap)}, nil
}

// Unlock re-evaluates, then consumes one credit on the server. Concurrent calls for the
// same project share one request and one Idempotency-Key. The returned state comes from
// the server's response, never from a local decrement. On failure the true balance is
// re-fetched and attached to the error.
func (e *Entitlements) Unlock(ctx context.Context, projectID uuid.UUID) (*ProjectEntitlement, error) {
	v, err := e.c.once(ctx, "unlock:"+projectID.String(), func(ctx context.Context) (any, error) {
		return e.unlock(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProjectEntitlement), nil
}

func (e *Entitlements) unlock(ctx context.Context, projectID uuid.UUID) (*ProjectEntitlement, error) {
	current, err := e.Evaluate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Decision.HasAccess:
		return current, nil
	case !current.Decision.CanUnlock():
		return nil, &UnlockError{Err: errNotEligible(current.Decision), Current: current}
	}

	res, err := e.c.unlock(ctx, projectID, uuid.NewString())
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		fresh, ferr := e.Evaluate(ctx, projectID)
		if ferr != nil {
			fresh = nil
		}
		return nil, &UnlockError{Err: err, Current: fresh}
	}

	snap := current.Snapshot
	snap.ExistingUnlock = true
	snap.ViewsRemaining = res.ViewsRemaining
	return &ProjectEntitlement{Snapshot: snap, Decision: entitlement.Decide(snap)}, nil
}

// NotEligibleError says which gate stopped an unlock before any request was made.
type NotEligibleError struct {
	State entitlement.State
	Next  entitlement.NextAction
}

func (e *NotEligibleError) Error() string {
	return "project cannot be unlocked yet: " + string(e.State)
}

func errNotEligible(d entitlement.Decision) error {
	return &NotEligibleError{State: d.State, Next: d.Next}
}
