package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to VisitorStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusCheckedIn, false},
		{StatusPreApproved, StatusCheckedIn, true},
		{StatusPreApproved, StatusCancelled, true},
		{StatusPreApproved, StatusApproved, false},
		{StatusApproved, StatusCheckedIn, true},
		{StatusCheckedIn, StatusCheckedOut, true},
		{StatusCheckedOut, StatusCheckedIn, false},
		{StatusRejected, StatusApproved, false},
		{StatusExpired, StatusApproved, false},
		{StatusCancelled, StatusCheckedIn, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []VisitorStatus{StatusRejected, StatusCheckedOut, StatusExpired, StatusCancelled} {
		assert.True(t, Terminal(s), "%s should be terminal", s)
	}
	for _, s := range []VisitorStatus{StatusPending, StatusPreApproved, StatusApproved, StatusCheckedIn} {
		assert.False(t, Terminal(s), "%s should not be terminal", s)
	}
}

func TestDaySpan(t *testing.T) {
	at := time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)
	start, end := DaySpan(at)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 14, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
	assert.True(t, end.After(at))
	assert.True(t, start.Before(at))
}

func TestCategorize(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	window := func(startOffset, endOffset time.Duration) (*time.Time, *time.Time) {
		s := now.Add(startOffset)
		e := now.Add(endOffset)
		return &s, &e
	}

	upcomingStart, upcomingEnd := window(2*time.Hour, 4*time.Hour)
	activeStart, activeEnd := window(-time.Hour, time.Hour)
	lapsedStart, lapsedEnd := window(-4*time.Hour, -2*time.Hour)

	visitors := []Visitor{
		{ID: 1, Status: StatusPreApproved, ScheduledArrivalStart: upcomingStart, ScheduledArrivalEnd: upcomingEnd},
		{ID: 2, Status: StatusPreApproved, ScheduledArrivalStart: activeStart, ScheduledArrivalEnd: activeEnd},
		{ID: 3, Status: StatusPreApproved, ScheduledArrivalStart: lapsedStart, ScheduledArrivalEnd: lapsedEnd},
		{ID: 4, Status: StatusCheckedIn, ScheduledArrivalStart: activeStart, ScheduledArrivalEnd: activeEnd},
		{ID: 5, Status: StatusCheckedOut, ScheduledArrivalStart: lapsedStart, ScheduledArrivalEnd: lapsedEnd},
	}

	out := Categorize(visitors, now)
	require.Len(t, out.Upcoming, 1)
	assert.Equal(t, int64(1), out.Upcoming[0].ID)
	require.Len(t, out.Active, 2)
	require.Len(t, out.Expired, 1)
	assert.Equal(t, int64(3), out.Expired[0].ID)
	// A lapsed window is a display label only.
	assert.Equal(t, StatusPreApproved, out.Expired[0].Status)
	require.Len(t, out.Completed, 1)
	assert.Equal(t, int64(5), out.Completed[0].ID)
}

func TestAwaitingDecision(t *testing.T) {
	token := "tok"
	assert.True(t, (&Visitor{Status: StatusPending, ApprovalToken: &token}).AwaitingDecision())
	assert.False(t, (&Visitor{Status: StatusPending}).AwaitingDecision())
	assert.False(t, (&Visitor{Status: StatusApproved, ApprovalToken: &token}).AwaitingDecision())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPreApproved))
	assert.False(t, ValidStatus(VisitorStatus("unknown")))
}
