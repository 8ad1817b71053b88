package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func liveEvent(maxSeats int) *Event {
	return &Event{
		Base:        Base{ID: 10},
		Name:        "Hackathon",
		Description: "Overnight build",
		Category:    []string{"tech"},
		Date:        time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00",
		EndTime:     "18:00",
		Location:    "Main hall",
		MaxSeats:    maxSeats,
		MinTeamSize: 1,
		PosterImage: "https://cdn.example/poster.png",
		Status:      EventLive,
		IsActive:    true,
	}
}

func teamOf(id, leader uint, size int) *Team {
	members := make([]TeamMember, size)
	for i := range members {
		members[i] = TeamMember{FullName: "Member", USN: "1XX00", CurrentSemester: 3, Department: "CSE"}
	}
	return &Team{Base: Base{ID: id}, TeamLeaderID: leader, Members: members, IsActive: true}
}

func TestCheckRegistrationOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Event, tm *Team)
		user   uint
		want   error
	}{
		{"ok", func(e *Event, tm *Team) {}, 1, nil},
		{"not leader wins over everything", func(e *Event, tm *Team) {
			e.Status = EventExpired
			e.IsActive = false
		}, 2, ErrNotTeamLeader},
		{"status before activity", func(e *Event, tm *Team) {
			e.Status = EventUpcoming
			e.IsActive = false
		}, 1, ErrEventNotLive},
		{"inactive", func(e *Event, tm *Team) { e.IsActive = false }, 1, ErrEventInactive},
		{"full before size", func(e *Event, tm *Team) {
			e.AddRegistration(99, time.Now())
			e.AddRegistration(98, time.Now())
			e.MinTeamSize = 5
		}, 1, ErrEventFull},
		{"too small", func(e *Event, tm *Team) { e.MinTeamSize = 4 }, 1, ErrTeamSizeMismatch},
		{"too large", func(e *Event, tm *Team) { e.MaxTeamSize = intPtr(2) }, 1, ErrTeamSizeMismatch},
		{"duplicate", func(e *Event, tm *Team) { e.AddRegistration(tm.ID, time.Now()) }, 1, ErrAlreadyRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := liveEvent(2)
			tm := teamOf(5, 1, 3)
			tt.mutate(ev, tm)

			err := ev.CheckRegistration(tm, tt.user)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var regErr *RegistrationError
			require.True(t, errors.As(err, &regErr))
			assert.NotEmpty(t, regErr.Message)
		})
	}
}

func TestTeamSizeMessageMentionsBounds(t *testing.T) {
	ev := liveEvent(5)
	ev.MinTeamSize = 2
	ev.MaxTeamSize = intPtr(3)

	err := ev.CheckRegistration(teamOf(1, 1, 4), 1)
	require.Error(t, err)
	assert.Equal(t, "Team size must be minimum 2 and maximum 3 members. Your team has 4 members.", err.Error())
}

func TestSeatAccounting(t *testing.T) {
	ev := liveEvent(2)
	assert.Equal(t, 2, ev.AvailableSeats())
	assert.True(t, ev.CanRegister())

	ev.AddRegistration(1, time.Now())
	ev.AddRegistration(2, time.Now())
	assert.True(t, ev.IsFull())
	assert.False(t, ev.CanRegister())
	assert.Equal(t, 0, ev.AvailableSeats())

	ev.RemoveRegistration(1)
	assert.False(t, ev.IsTeamRegistered(1))
	assert.True(t, ev.IsTeamRegistered(2))
	assert.Equal(t, 1, ev.AvailableSeats())

	// Removing an absent team is a no-op
	ev.RemoveRegistration(42)
	assert.Len(t, ev.RegisteredTeams, 1)
}

func TestCheckUnregistration(t *testing.T) {
	ev := liveEvent(2)
	tm := teamOf(7, 1, 2)

	assert.ErrorIs(t, ev.CheckUnregistration(tm, 3), ErrNotTeamLeader)
	assert.ErrorIs(t, ev.CheckUnregistration(tm, 1), ErrNotRegistered)

	ev.AddRegistration(tm.ID, time.Now())
	assert.NoError(t, ev.CheckUnregistration(tm, 1))

	// Unregistering is allowed after the event stops being live
	ev.Status = EventExpired
	assert.NoError(t, ev.CheckUnregistration(tm, 1))
}

func TestEventValidate(t *testing.T) {
	assert.Empty(t, liveEvent(1).Validate())

	ev := liveEvent(0)
	ev.Name = "ab"
	ev.Category = nil
	ev.MinTeamSize = 3
	ev.MaxTeamSize = intPtr(2)
	ev.PosterImage = ""
	ev.Status = "draft"

	errs := ev.Validate()
	assert.Contains(t, errs, "Event name must be at least 3 characters")
	assert.Contains(t, errs, "Event must have at least one category")
	assert.Contains(t, errs, "Maximum seats must be at least 1")
	assert.Contains(t, errs, "Maximum team size must be greater than or equal to minimum team size")
	assert.Contains(t, errs, "Event poster image is required")
	assert.Contains(t, errs, "Status must be one of upcoming, live, expired, cancelled")
}

func TestEventJSONIncludesDerivedSeats(t *testing.T) {
	ev := liveEvent(3)
	ev.AddRegistration(1, time.Now())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.EqualValues(t, 2, out["availableSeats"])
	assert.Equal(t, false, out["isFull"])
	assert.Equal(t, "live", out["status"])
	assert.NotContains(t, out, "createdBy")
}
