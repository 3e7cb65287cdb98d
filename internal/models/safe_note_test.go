package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/apperr"
)

var allSAFEEvents = []SAFEEvent{SAFEEventSend, SAFEEventInvestorSign, SAFEEventFounderSign, SAFEEventExecute, SAFEEventCancel}

func ptr(f float64) *float64 { return &f }

func TestSAFEHappyPath(t *testing.T) {
	n := &SAFENote{Status: SAFEStatusDraft}
	at := time.Now()
	for _, ev := range []SAFEEvent{SAFEEventSend, SAFEEventInvestorSign, SAFEEventFounderSign, SAFEEventExecute} {
		require.NoError(t, n.Apply(ev, at), "event %s", ev)
	}
	assert.Equal(t, SAFEStatusExecuted, n.Status)
	assert.NotNil(t, n.SentAt)
	assert.NotNil(t, n.InvestorSignedAt)
	assert.NotNil(t, n.FounderSignedAt)
	assert.NotNil(t, n.ExecutedAt)
	assert.Nil(t, n.CancelledAt)
	assert.True(t, n.ReadOnly())
}

func TestSAFETerminalStatesRejectEverything(t *testing.T) {
	for _, s := range []SAFENoteStatus{SAFEStatusExecuted, SAFEStatusCancelled} {
		for _, ev := range allSAFEEvents {
			next, ok := s.Next(ev)
			assert.False(t, ok, "%s -> %s", s, ev)
			assert.Equal(t, s, next)

			n := &SAFENote{Status: s}
			err := n.Apply(ev, time.Now())
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
			assert.Equal(t, s, n.Status)
		}
	}
}

func TestSAFENoSkippingForward(t *testing.T) {
	tests := []struct {
		from SAFENoteStatus
		ev   SAFEEvent
	}{
		{SAFEStatusDraft, SAFEEventInvestorSign},
		{SAFEStatusDraft, SAFEEventExecute},
		{SAFEStatusSent, SAFEEventFounderSign},
		{SAFEStatusSent, SAFEEventSend},
		{SAFEStatusSignedInvestor, SAFEEventExecute},
		{SAFEStatusSignedFounder, SAFEEventInvestorSign},
	}
	for _, tt := range tests {
		_, ok := tt.from.Next(tt.ev)
		assert.False(t, ok, "%s -> %s", tt.from, tt.ev)
	}
}

func TestSAFECancelFromEveryOpenState(t *testing.T) {
	for _, s := range []SAFENoteStatus{SAFEStatusDraft, SAFEStatusSent, SAFEStatusSignedInvestor, SAFEStatusSignedFounder} {
		n := &SAFENote{Status: s}
		require.NoError(t, n.Apply(SAFEEventCancel, time.Now()))
		assert.Equal(t, SAFEStatusCancelled, n.Status)
		assert.NotNil(t, n.CancelledAt)
	}
}

func TestValidateOffer(t *testing.T) {
	tests := []struct {
		name   string
		terms  SAFETerms
		lo, hi float64
		fields []string
	}{
		{"zero amount", SAFETerms{InvestmentAmount: 0, IsMFN: true}, 0, 0, []string{"investment_amount"}},
		{"no cap discount or mfn", SAFETerms{InvestmentAmount: 1000}, 0, 0, []string{"terms"}},
		{"zero cap counts as unset", SAFETerms{InvestmentAmount: 1000, ValuationCap: ptr(0)}, 0, 0, []string{"terms"}},
		{"below minimum", SAFETerms{InvestmentAmount: 999, IsMFN: true}, 1000, 5000, []string{"investment_amount"}},
		{"above maximum", SAFETerms{InvestmentAmount: 5001, IsMFN: true}, 1000, 5000, []string{"investment_amount"}},
		{"discount out of range", SAFETerms{InvestmentAmount: 1000, DiscountRate: ptr(100)}, 0, 0, []string{"discount_rate"}},
		{"both failing", SAFETerms{}, 0, 0, []string{"investment_amount", "terms"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOffer(tt.terms, tt.lo, tt.hi)
			require.Error(t, err)
			v, ok := err.(Violations)
			require.True(t, ok)
			var got []string
			for _, x := range v {
				got = append(got, x.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestValidateOfferAccepts(t *testing.T) {
	assert.NoError(t, ValidateOffer(SAFETerms{InvestmentAmount: 1000, IsMFN: true}, 1000, 1000), "bounds are inclusive")
	assert.NoError(t, ValidateOffer(SAFETerms{InvestmentAmount: 50, ValuationCap: ptr(5e6)}, 0, 0))
	assert.NoError(t, ValidateOffer(SAFETerms{InvestmentAmount: 50, DiscountRate: ptr(20)}, 0, 0))
	assert.NoError(t, ValidateOffer(SAFETerms{InvestmentAmount: 50, IsMFN: true, ValuationCap: ptr(1e6)}, 0, 0), "mfn with cap is allowed")
}

func TestWithMFNClearsCapAndDiscount(t *testing.T) {
	terms := SAFETerms{InvestmentAmount: 10, ValuationCap: ptr(1e6), DiscountRate: ptr(15)}.WithMFN(true)
	assert.True(t, terms.IsMFN)
	assert.Nil(t, terms.ValuationCap)
	assert.Nil(t, terms.DiscountRate)
}
