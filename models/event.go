package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventLive      EventStatus = "live"
	EventExpired   EventStatus = "expired"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventLive, EventExpired, EventCancelled:
		return true
	}
	return false
}

// Registration failure reasons. RegistrationError wraps one of these.
var (
	ErrNotTeamLeader     = errors.New("requester is not the team leader")
	ErrEventNotLive      = errors.New("event is not live")
	ErrEventInactive     = errors.New("event is inactive")
	ErrEventFull         = errors.New("event is full")
	ErrTeamSizeMismatch  = errors.New("team size outside event bounds")
	ErrAlreadyRegistered = errors.New("team already registered")
	ErrNotRegistered     = errors.New("team not registered")
)

// RegistrationError pairs a sentinel reason with a user-facing message.
type RegistrationError struct {
	Reason  error
	Message string
}

func (e *RegistrationError) Error() string { return e.Message }
func (e *RegistrationError) Unwrap() error { return e.Reason }

func registrationError(reason error, format string, args ...interface{}) error {
	return &RegistrationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Registration is one team's seat in an event.
type Registration struct {
	TeamID       uint      `json:"team"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event is a competition or workshop that teams register for
type Event struct {
	Base
	Name        string                      `gorm:"not null" json:"name"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Category    datatypes.JSONSlice[string] `gorm:"not null" json:"category"`
	Date        time.Time                   `gorm:"not null;index:idx_events_status_date,priority:2" json:"date"`
	StartTime   string                      `gorm:"not null" json:"startTime"`
	EndTime     string                      `gorm:"not null" json:"endTime"`
	Location    string                      `gorm:"not null" json:"location"`

	MaxSeats    int  `gorm:"not null" json:"maxSeats"`
	MinTeamSize int  `gorm:"not null;default:1" json:"minTeamSize"`
	MaxTeamSize *int `json:"maxTeamSize"`

	PosterImage     string                            `json:"posterImage"`
	RegisteredTeams datatypes.JSONSlice[Registration] `json:"registeredTeams"`
	Status          EventStatus                       `gorm:"type:varchar(16);default:'upcoming';index:idx_events_status_date,priority:1" json:"status"`

	CreatedByID uint  `gorm:"not null;index" json:"createdById"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"-"`
	IsActive    bool  `gorm:"default:true;index" json:"isActive"`

	// Teams is filled by handlers that expand RegisteredTeams.
	Teams []Team `gorm:"-" json:"teams,omitempty"`
}

func (e *Event) AvailableSeats() int {
	return e.MaxSeats - len(e.RegisteredTeams)
}

func (e *Event) IsFull() bool {
	return len(e.RegisteredTeams) >= e.MaxSeats
}

// CanRegister reports whether the event currently accepts registrations.
func (e *Event) CanRegister() bool {
	return e.Status == EventLive && !e.IsFull() && e.IsActive
}

// IsValidTeamSize checks size against [MinTeamSize, MaxTeamSize]; a nil
// MaxTeamSize leaves the upper bound open.
func (e *Event) IsValidTeamSize(size int) bool {
	if size < e.MinTeamSize {
		return false
	}
	if e.MaxTeamSize != nil && size > *e.MaxTeamSize {
		return false
	}
	return true
}

func (e *Event) IsTeamRegistered(teamID uint) bool {
	return e.registrationIndex(teamID) >= 0
}

func (e *Event) registrationIndex(teamID uint) int {
	for i, rt := range e.RegisteredTeams {
		if rt.TeamID == teamID {
			return i
		}
	}
	return -1
}

// CheckRegistration runs the registration rules in order: leadership,
// status, activity, capacity, team size, duplicates. Nothing is mutated.
func (e *Event) CheckRegistration(team *Team, requesterID uint) error {
	if !team.IsLedBy(requesterID) {
		return registrationError(ErrNotTeamLeader, "Only team leader can register the team for events")
	}
	if e.Status != EventLive {
		return registrationError(ErrEventNotLive,
			"Cannot register for %s events. Registration is only open for live events.", e.Status)
	}
	if !e.IsActive {
		return registrationError(ErrEventInactive, "This event is no longer active")
	}
	if e.IsFull() {
		return registrationError(ErrEventFull, "Event is full. No more registrations accepted.")
	}
	if !e.IsValidTeamSize(team.TeamSize()) {
		maxMsg := ""
		if e.MaxTeamSize != nil {
			maxMsg = fmt.Sprintf(" and maximum %d", *e.MaxTeamSize)
		}
		return registrationError(ErrTeamSizeMismatch,
			"Team size must be minimum %d%s members. Your team has %d members.",
			e.MinTeamSize, maxMsg, team.TeamSize())
	}
	if e.IsTeamRegistered(team.ID) {
		return registrationError(ErrAlreadyRegistered, "Team is already registered for this event")
	}
	return nil
}

// AddRegistration appends a registration record for team.
func (e *Event) AddRegistration(teamID uint, at time.Time) {
	e.RegisteredTeams = append(e.RegisteredTeams, Registration{TeamID: teamID, RegisteredAt: at})
}

// CheckUnregistration validates that requester may withdraw team.
func (e *Event) CheckUnregistration(team *Team, requesterID uint) error {
	if !team.IsLedBy(requesterID) {
		return registrationError(ErrNotTeamLeader, "Only team leader can unregister the team from events")
	}
	if !e.IsTeamRegistered(team.ID) {
		return registrationError(ErrNotRegistered, "Team is not registered for this event")
	}
	return nil
}

func (e *Event) RemoveRegistration(teamID uint) {
	idx := e.registrationIndex(teamID)
	if idx < 0 {
		return
	}
	kept := make(datatypes.JSONSlice[Registration], 0, len(e.RegisteredTeams)-1)
	kept = append(kept, e.RegisteredTeams[:idx]...)
	kept = append(kept, e.RegisteredTeams[idx+1:]...)
	e.RegisteredTeams = kept
}

// Validate enforces field-level constraints before a write.
func (e *Event) Validate() []string {
	var errs []string
	name := strings.TrimSpace(e.Name)
	switch {
	case name == "":
		errs = append(errs, "Event name is required")
	case len(name) < 3:
		errs = append(errs, "Event name must be at least 3 characters")
	case len(name) > 100:
		errs = append(errs, "Event name must not exceed 100 characters")
	}
	if strings.TrimSpace(e.Description) == "" {
		errs = append(errs, "Event description is required")
	} else if len(e.Description) > 2000 {
		errs = append(errs, "Description must not exceed 2000 characters")
	}
	if len(e.Category) == 0 {
		errs = append(errs, "Event must have at least one category")
	}
	if e.Date.IsZero() {
		errs = append(errs, "Event date is required")
	}
	if e.StartTime == "" {
		errs = append(errs, "Start time is required")
	}
	if e.EndTime == "" {
		errs = append(errs, "End time is required")
	}
	if strings.TrimSpace(e.Location) == "" {
		errs = append(errs, "Event location is required")
	}
	if e.MaxSeats < 1 {
		errs = append(errs, "Maximum seats must be at least 1")
	}
	if e.MinTeamSize < 1 {
		errs = append(errs, "Minimum team size must be at least 1")
	}
	if e.MaxTeamSize != nil && *e.MaxTeamSize < e.MinTeamSize {
		errs = append(errs, "Maximum team size must be greater than or equal to minimum team size")
	}
	if e.PosterImage == "" {
		errs = append(errs, "Event poster image is required")
	}
	if !e.Status.Valid() {
		errs = append(errs, "Status must be one of upcoming, live, expired, cancelled")
	}
	return errs
}

func (e Event) MarshalJSON() ([]byte, error) {
	type event Event
	if e.RegisteredTeams == nil {
		e.RegisteredTeams = datatypes.JSONSlice[Registration]{}
	}
	return json.Marshal(struct {
		event
		CreatedBy      *UserSummary `json:"createdBy,omitempty"`
		AvailableSeats int          `json:"availableSeats"`
		IsFull         bool         `json:"isFull"`
	}{event(e), e.CreatedBy.Summary(), e.AvailableSeats(), e.IsFull()})
}
