package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"unihub/middleware"
	"unihub/models"
	"unihub/utils"
)

// RegisterTeam seats a team in a live event. The event and team rows are
// re-read and written inside one transaction so the seat count can never
// pass MaxSeats and both sides of the registration change together.
func (ec *EventController) RegisterTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	eventID, ok := utils.ParseID(c.Params("eventId"))
	if !ok {
		return utils.BadRequest("Invalid event ID")
	}
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	teamID, ok := utils.ParseID(fields.Trimmed("teamId"))
	if !ok {
		return utils.BadRequest("Invalid team ID")
	}

	var event *models.Event
	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		ev, team, err := lockRegistrationRows(tx, eventID, teamID)
		if err != nil {
			return err
		}
		if !team.IsActive {
			return utils.NotFound("Team not found")
		}
		if err := ev.CheckRegistration(team, user.ID); err != nil {
			return err
		}

		ev.AddRegistration(team.ID, time.Now())
		team.AddEvent(ev.ID)

		if err := tx.Model(ev).Update("registered_teams", ev.RegisteredTeams).Error; err != nil {
			return err
		}
		if err := tx.Model(team).Update("registered_events", team.RegisteredEvents).Error; err != nil {
			return err
		}
		event = ev
		return nil
	})
	utils.RegistrationsTotal.WithLabelValues("register", utils.ResultLabel(err)).Inc()
	if err != nil {
		return registrationFailure(err)
	}

	utils.LogEvent("team_registered", map[string]interface{}{
		"event_id": event.ID,
		"team_id":  teamID,
		"user_id":  user.ID,
	})
	ec.publishSeats(event, "registered")

	if err := expandEventTeams(ec.DB, event); err != nil {
		return err
	}
	return utils.Respond(c, fiber.StatusOK, event, "Team registered successfully")
}

// UnregisterTeam releases a team's seat, again updating both rows atomically.
func (ec *EventController) UnregisterTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	eventID, ok := utils.ParseID(c.Params("eventId"))
	if !ok {
		return utils.BadRequest("Invalid event ID")
	}
	teamID, ok := utils.ParseID(c.Params("teamId"))
	if !ok {
		return utils.BadRequest("Invalid team ID")
	}

	var event *models.Event
	err := ec.DB.Transaction(func(tx *gorm.DB) error {
		ev, team, err := lockRegistrationRows(tx, eventID, teamID)
		if err != nil {
			return err
		}
		if err := ev.CheckUnregistration(team, user.ID); err != nil {
			return err
		}

		ev.RemoveRegistration(team.ID)
		team.RemoveEvent(ev.ID)

		if err := tx.Model(ev).Update("registered_teams", ev.RegisteredTeams).Error; err != nil {
			return err
		}
		if err := tx.Model(team).Update("registered_events", team.RegisteredEvents).Error; err != nil {
			return err
		}
		event = ev
		return nil
	})
	utils.RegistrationsTotal.WithLabelValues("unregister", utils.ResultLabel(err)).Inc()
	if err != nil {
		return registrationFailure(err)
	}

	utils.LogEvent("team_unregistered", map[string]interface{}{
		"event_id": event.ID,
		"team_id":  teamID,
		"user_id":  user.ID,
	})
	ec.publishSeats(event, "unregistered")

	return utils.Respond(c, fiber.StatusOK, nil, "Team unregistered successfully")
}

// forUpdate returns a handle whose reads lock rows FOR UPDATE until the
// transaction ends. Only postgres takes the lock.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})
}

func lockEvent(tx *gorm.DB, eventID uint) (*models.Event, error) {
	var event models.Event
	if err := forUpdate(tx).First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Event not found")
		}
		return nil, err
	}
	return &event, nil
}

// lockRegistrationRows loads the event then the team. The event row is
// always locked first so concurrent registrations cannot deadlock.
func lockRegistrationRows(tx *gorm.DB, eventID, teamID uint) (*models.Event, *models.Team, error) {
	event, err := lockEvent(tx, eventID)
	if err != nil {
		return nil, nil, err
	}

	var team models.Team
	if err := forUpdate(tx).First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NotFound("Team not found")
		}
		return nil, nil, err
	}

	return event, &team, nil
}

// registrationFailure maps rule violations onto API errors.
func registrationFailure(err error) error {
	var regErr *models.RegistrationError
	if !errors.As(err, &regErr) {
		return err
	}

	switch {
	case errors.Is(err, models.ErrNotTeamLeader):
		return utils.Forbidden(regErr.Message)
	case errors.Is(err, models.ErrAlreadyRegistered):
		return utils.Conflict(regErr.Message)
	default:
		return utils.InvalidState(regErr.Message)
	}
}
