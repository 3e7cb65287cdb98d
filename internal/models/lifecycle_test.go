package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeetingTransitions(t *testing.T) {
	tests := []struct {
		from MeetingStatus
		ev   MeetingEvent
		want MeetingStatus
		ok   bool
	}{
		{MeetingStatusPending, MeetingEventAccept, MeetingStatusAccepted, true},
		{MeetingStatusPending, MeetingEventDecline, MeetingStatusDeclined, true},
		{MeetingStatusPending, MeetingEventComplete, MeetingStatusPending, false},
		{MeetingStatusAccepted, MeetingEventComplete, MeetingStatusCompleted, true},
		{MeetingStatusAccepted, MeetingEventNoShow, MeetingStatusNoShow, true},
		{MeetingStatusAccepted, MeetingEventCancel, MeetingStatusCancelled, true},
		{MeetingStatusAccepted, MeetingEventAccept, MeetingStatusAccepted, false},
		{MeetingStatusDeclined, MeetingEventAccept, MeetingStatusDeclined, false},
		{MeetingStatusCompleted, MeetingEventCancel, MeetingStatusCompleted, false},
	}
	for _, tt := range tests {
		got, ok := tt.from.Next(tt.ev)
		assert.Equal(t, tt.ok, ok, "%s -> %s", tt.from, tt.ev)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.ev)
	}
}

func TestMeetingAcceptRecordsSchedule(t *testing.T) {
	m := &MeetingRequest{Status: MeetingStatusPending}
	when := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)
	assert.True(t, m.Accept(when, "https://meet.example/abc", time.Now()))
	assert.Equal(t, MeetingStatusAccepted, m.Status)
	assert.Equal(t, when, *m.ScheduledAt)
	assert.Equal(t, "https://meet.example/abc", m.MeetingLink)

	assert.False(t, m.Decline("late", time.Now()), "accepted meetings cannot be declined")
	assert.False(t, m.Close(MeetingEventAccept, time.Now()))
	assert.True(t, m.Close(MeetingEventComplete, time.Now()))
	assert.NotNil(t, m.ClosedAt)
}

func TestMeetingRecipientOnly(t *testing.T) {
	assert.True(t, MeetingEventAccept.RecipientOnly())
	assert.True(t, MeetingEventDecline.RecipientOnly())
	assert.False(t, MeetingEventCancel.RecipientOnly())
}

func TestPaymentTransitions(t *testing.T) {
	next, ok := PaymentStatusPending.Next(PaymentEventSucceed)
	assert.True(t, ok)
	assert.Equal(t, PaymentStatusSucceeded, next)
	assert.True(t, next.GrantsCredits())

	next, ok = PaymentStatusSucceeded.Next(PaymentEventRefund)
	assert.True(t, ok)
	assert.Equal(t, PaymentStatusRefunded, next)
	assert.False(t, next.GrantsCredits())

	_, ok = PaymentStatusPending.Next(PaymentEventRefund)
	assert.False(t, ok)
	_, ok = PaymentStatusSucceeded.Next(PaymentEventSucceed)
	assert.False(t, ok)
	for _, ev := range []PaymentEvent{PaymentEventSucceed, PaymentEventFail, PaymentEventRefund} {
		_, ok = PaymentStatusRefunded.Next(ev)
		assert.False(t, ok)
		_, ok = PaymentStatusFailed.Next(ev)
		assert.False(t, ok)
	}
}

func TestCommissionMarkPaid(t *testing.T) {
	next, ok := CommissionStatusPending.MarkPaid()
	assert.True(t, ok)
	assert.Equal(t, CommissionStatusPaid, next)

	_, ok = CommissionStatusPaid.MarkPaid()
	assert.False(t, ok)
	_, ok = CommissionStatusCancelled.MarkPaid()
	assert.False(t, ok)
}

func TestComputeCommissionRoundsToCents(t *testing.T) {
	assert.Equal(t, 2500.0, ComputeCommission(50000, 0.05))
	assert.Equal(t, 0.06, ComputeCommission(1.15, 0.05))
	assert.Equal(t, 0.0, ComputeCommission(0, 0.05))
}

func TestSummarizePageIsPageScoped(t *testing.T) {
	var page []Commission
	for _, amt := range []float64{100, 200, 100, 50, 50} {
		page = append(page, Commission{Amount: amt, Rate: 0.05, Status: CommissionStatusPaid})
	}
	for i := 0; i < 10; i++ {
		page = append(page, Commission{Amount: 10, Rate: 0.05, Status: CommissionStatusPending})
	}
	for i := 0; i < 5; i++ {
		page = append(page, Commission{Amount: 999, Rate: 0.05, Status: CommissionStatusCancelled})
	}
	assert.Len(t, page, 20)

	s := SummarizePage(page)
	assert.Equal(t, ScopePage, s.Scope)
	assert.Equal(t, 20, s.Count)
	assert.Equal(t, 500.0, s.TotalEarned)
	assert.Equal(t, 100.0, s.PendingAmount)
	assert.Equal(t, 0.05, s.AverageRate)
}

func TestSummarizeEmptyPage(t *testing.T) {
	s := SummarizePage(nil)
	assert.Equal(t, ScopePage, s.Scope)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.AverageRate)
}
