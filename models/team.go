package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// TeamMember is one student on a team roster. Members are embedded in the
// team row rather than referencing accounts.
type TeamMember struct {
	FullName        string `json:"fullName" validate:"required"`
	USN             string `json:"usn" validate:"required"`
	CurrentSemester int    `json:"currentSemester" validate:"required,semester"`
	Department      string `json:"department" validate:"required"`
}

// Team is a roster owned by a single leader account
type Team struct {
	Base
	TeamName     string `gorm:"not null;index:idx_teams_leader_name,priority:2" json:"teamName"`
	TeamLeaderID uint   `gorm:"not null;index:idx_teams_leader_name,priority:1" json:"teamLeaderId"`
	TeamLeader   *User  `gorm:"foreignKey:TeamLeaderID" json:"teamLeader,omitempty"`

	Members          datatypes.JSONSlice[TeamMember] `gorm:"not null" json:"members"`
	RegisteredEvents datatypes.JSONSlice[uint]       `json:"registeredEvents"`
	IsActive         bool                            `gorm:"default:true;index" json:"isActive"`

	// Events is filled by handlers that expand RegisteredEvents.
	Events []Event `gorm:"-" json:"events,omitempty"`
}

func (t *Team) TeamSize() int {
	return len(t.Members)
}

func (t *Team) IsLedBy(userID uint) bool {
	return t.TeamLeaderID == userID
}

func (t *Team) HasEvent(eventID uint) bool {
	for _, id := range t.RegisteredEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// AddEvent records eventID once.
func (t *Team) AddEvent(eventID uint) {
	if !t.HasEvent(eventID) {
		t.RegisteredEvents = append(t.RegisteredEvents, eventID)
	}
}

func (t *Team) RemoveEvent(eventID uint) {
	kept := make(datatypes.JSONSlice[uint], 0, len(t.RegisteredEvents))
	for _, id := range t.RegisteredEvents {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	t.RegisteredEvents = kept
}

func (t Team) MarshalJSON() ([]byte, error) {
	type team Team
	if t.RegisteredEvents == nil {
		t.RegisteredEvents = datatypes.JSONSlice[uint]{}
	}
	return json.Marshal(struct {
		team
		TeamSize int `json:"teamSize"`
	}{team(t), t.TeamSize()})
}
