package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"unihub/middleware"
	"unihub/models"
	"unihub/utils"
)

const (
	eventsPageLimit    = 10
	eventPosterFolder  = "uniconnect/events"
	eventDateLayoutDay = "2006-01-02"
)

// "date" is quoted through the clause builder on every dialect.
var byDate = clause.OrderByColumn{Column: clause.Column{Name: "date"}}

// EventController serves event CRUD, registration and the live seat feed.
type EventController struct {
	DB    *gorm.DB
	Media utils.MediaStore
	Hub   *utils.SeatHub
}

func NewEventController(db *gorm.DB, media utils.MediaStore, hub *utils.SeatHub) *EventController {
	return &EventController{DB: db, Media: media, Hub: hub}
}

// ListEvents returns active events filtered by status, category and a
// name/description search, ordered by date then newest first.
func (ec *EventController) ListEvents(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c, eventsPageLimit)

	q := ec.DB.Model(&models.Event{}).Where("is_active = ?", true)

	if status := models.EventStatus(c.Query("status")); status.Valid() {
		q = q.Where("status = ?", status)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		q = q.Where(datatypes.JSONArrayQuery("category").Contains(category))
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	events := []models.Event{}
	if err := q.Preload("CreatedBy").
		Order(byDate).Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{
		"events":     events,
		"pagination": utils.NewPagination(page, limit, total),
	}, "Events fetched successfully")
}

func (ec *EventController) GetEvent(c *fiber.Ctx) error {
	event, err := ec.loadEvent(c.Params("eventId"))
	if err != nil {
		return err
	}
	if err := expandEventTeams(ec.DB, event); err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, event, "Event fetched successfully")
}

func (ec *EventController) CreateEvent(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	fields, err := readFields(c)
	if err != nil {
		return err
	}

	for _, key := range []string{"name", "description", "category", "date", "startTime", "endTime", "location", "maxSeats"} {
		if fields.Trimmed(key) == "" {
			return utils.BadRequest("All required fields must be provided")
		}
	}

	event := models.Event{
		MinTeamSize: 1,
		Status:      models.EventUpcoming,
		CreatedByID: user.ID,
		IsActive:    true,
	}
	if err := applyEventFields(&event, fields); err != nil {
		return err
	}

	poster := middleware.UploadedFile(c)
	if poster != nil {
		// Placeholder so validation passes; replaced by the hosted URL.
		event.PosterImage = poster.Path
	}
	if errs := event.Validate(); len(errs) > 0 {
		return utils.BadRequest(strings.Join(errs, ", "), errs...)
	}

	var uploaded *utils.UploadResult
	if poster != nil {
		if uploaded, err = ec.uploadPoster(c, poster); err != nil {
			return err
		}
		event.PosterImage = uploaded.SecureURL
	}

	if err := ec.DB.Create(&event).Error; err != nil {
		ec.discardPoster(c, uploaded)
		return err
	}
	event.CreatedBy = user

	utils.LogEvent("event_created", map[string]interface{}{"event_id": event.ID, "created_by": user.ID})
	return utils.Respond(c, fiber.StatusCreated, event, "Event created successfully")
}

// UpdateEvent applies the changes with the event row locked, so a
// registration cannot commit between the seat check and the write.
func (ec *EventController) UpdateEvent(c *fiber.Ctx) error {
	eventID, ok := utils.ParseID(c.Params("eventId"))
	if !ok {
		return utils.BadRequest("Invalid event ID")
	}

	fields, err := readFields(c)
	if err != nil {
		return err
	}
	poster := middleware.UploadedFile(c)

	var (
		event    *models.Event
		uploaded *utils.UploadResult
	)
	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		ev, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if err := applyEventFields(ev, fields); err != nil {
			return err
		}
		if poster != nil {
			ev.PosterImage = poster.Path
		}
		if errs := ev.Validate(); len(errs) > 0 {
			return utils.BadRequest(strings.Join(errs, ", "), errs...)
		}
		if ev.MaxSeats < len(ev.RegisteredTeams) {
			return utils.InvalidState("Maximum seats cannot be less than the number of registered teams")
		}

		if poster != nil {
			if uploaded, err = ec.uploadPoster(c, poster); err != nil {
				return err
			}
			ev.PosterImage = uploaded.SecureURL
		}

		if err := tx.Model(ev).
			Select("name", "description", "category", "date", "start_time", "end_time", "location",
				"max_seats", "min_team_size", "max_team_size", "poster_image", "status").
			Updates(ev).Error; err != nil {
			return err
		}
		event = ev
		return nil
	})
	if err != nil {
		ec.discardPoster(c, uploaded)
		return err
	}

	var creator models.User
	if err := ec.DB.First(&creator, event.CreatedByID).Error; err == nil {
		event.CreatedBy = &creator
	}

	ec.publishSeats(event, "updated")
	return utils.Respond(c, fiber.StatusOK, event, "Event updated successfully")
}

// DeleteEvent deactivates the event; registrations are kept.
func (ec *EventController) DeleteEvent(c *fiber.Ctx) error {
	event, err := ec.loadEvent(c.Params("eventId"))
	if err != nil {
		return err
	}

	if err := ec.DB.Model(event).Update("is_active", false).Error; err != nil {
		return err
	}

	utils.LogEvent("event_deleted", map[string]interface{}{"event_id": event.ID})
	return utils.Respond(c, fiber.StatusOK, nil, "Event deleted successfully")
}

// MyRegisteredEvents lists active events any of the caller's teams holds a
// seat in.
func (ec *EventController) MyRegisteredEvents(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var teams []models.Team
	if err := ec.DB.Select("id", "registered_events").
		Where("team_leader_id = ? AND is_active = ?", user.ID, true).
		Find(&teams).Error; err != nil {
		return err
	}

	seen := make(map[uint]struct{})
	var eventIDs []uint
	for _, t := range teams {
		for _, id := range t.RegisteredEvents {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				eventIDs = append(eventIDs, id)
			}
		}
	}

	events := []models.Event{}
	if len(eventIDs) > 0 {
		if err := ec.DB.Preload("CreatedBy").
			Where("id IN ? AND is_active = ?", eventIDs, true).
			Order(byDate).
			Find(&events).Error; err != nil {
			return err
		}
	}

	return utils.Respond(c, fiber.StatusOK, events, "Registered events fetched successfully")
}

func (ec *EventController) loadEvent(rawID string) (*models.Event, error) {
	id, ok := utils.ParseID(rawID)
	if !ok {
		return nil, utils.BadRequest("Invalid event ID")
	}

	var event models.Event
	if err := ec.DB.Preload("CreatedBy").First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Event not found")
		}
		return nil, err
	}
	return &event, nil
}

func (ec *EventController) uploadPoster(c *fiber.Ctx, poster *middleware.StagedFile) (*utils.UploadResult, error) {
	if poster.IsVideo() {
		return nil, utils.BadRequest("Event poster must be an image")
	}
	res, err := ec.Media.Upload(c.UserContext(), poster.Path, utils.UploadOptions{
		ResourceType: string(models.MediaImage),
		Folder:       eventPosterFolder,
	})
	if err != nil {
		utils.LogError("poster_upload", err, map[string]interface{}{"file": poster.Filename})
		return nil, utils.Internal("Failed to upload poster image")
	}
	return res, nil
}

// discardPoster removes a poster uploaded for a write that did not commit.
func (ec *EventController) discardPoster(c *fiber.Ctx, uploaded *utils.UploadResult) {
	if uploaded == nil {
		return
	}
	if err := ec.Media.Delete(c.UserContext(), uploaded.PublicID); err != nil {
		utils.LogError("poster_upload_rollback", err, map[string]interface{}{"public_id": uploaded.PublicID})
	}
}

func (ec *EventController) publishSeats(event *models.Event, action string) {
	if ec.Hub == nil {
		return
	}
	ec.Hub.Publish(seatUpdate(event, action))
}

func seatUpdate(event *models.Event, action string) utils.SeatUpdate {
	return utils.SeatUpdate{
		EventID:         event.ID,
		Action:          action,
		RegisteredCount: len(event.RegisteredTeams),
		MaxSeats:        event.MaxSeats,
		AvailableSeats:  event.AvailableSeats(),
		IsFull:          event.IsFull(),
	}
}

// applyEventFields copies every editable field present in the request onto event.
func applyEventFields(event *models.Event, fields *requestFields) error {
	if fields.Has("name") {
		event.Name = fields.Trimmed("name")
	}
	if fields.Has("description") {
		event.Description = fields.Trimmed("description")
	}
	if fields.Has("category") {
		categories, _, err := fields.StringList("category")
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			return utils.BadRequest("Category must be a non-empty array")
		}
		event.Category = datatypes.JSONSlice[string](categories)
	}
	if fields.Has("date") {
		date, err := parseEventDate(fields.Trimmed("date"))
		if err != nil {
			return err
		}
		event.Date = date
	}
	if fields.Has("startTime") {
		event.StartTime = fields.Trimmed("startTime")
	}
	if fields.Has("endTime") {
		event.EndTime = fields.Trimmed("endTime")
	}
	if fields.Has("location") {
		event.Location = fields.Trimmed("location")
	}

	if n, ok, err := fields.Int("maxSeats"); err != nil {
		return err
	} else if ok {
		event.MaxSeats = n
	}
	if n, ok, err := fields.Int("minTeamSize"); err != nil {
		return err
	} else if ok {
		event.MinTeamSize = n
	}
	if fields.Has("maxTeamSize") {
		n, ok, err := fields.Int("maxTeamSize")
		if err != nil {
			return err
		}
		// Zero or blank clears the upper bound.
		if ok && n != 0 {
			event.MaxTeamSize = utils.Pointer(n)
		} else {
			event.MaxTeamSize = nil
		}
	}

	if fields.Has("posterImage") {
		event.PosterImage = fields.Trimmed("posterImage")
	}
	if fields.Has("status") {
		event.Status = models.EventStatus(strings.ToLower(fields.Trimmed("status")))
	}
	return nil
}

func parseEventDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", eventDateLayoutDay} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, utils.BadRequest("Invalid event date")
}

// expandEventTeams fills event.Teams, with leaders, in registration order.
func expandEventTeams(db *gorm.DB, event *models.Event) error {
	event.Teams = []models.Team{}
	if len(event.RegisteredTeams) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(event.RegisteredTeams))
	for _, rt := range event.RegisteredTeams {
		ids = append(ids, rt.TeamID)
	}

	var teams []models.Team
	if err := db.Preload("TeamLeader").Where("id IN ?", ids).Find(&teams).Error; err != nil {
		return err
	}

	byID := make(map[uint]models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			event.Teams = append(event.Teams, t)
		}
	}
	return nil
}
