package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"unihub/middleware"
	"unihub/models"
	"unihub/utils"
)

type TeamController struct {
	DB *gorm.DB
}

func NewTeamController(db *gorm.DB) *TeamController {
	return &TeamController{DB: db}
}

type teamInput struct {
	TeamName string              `validate:"required,min=3,max=50"`
	Members  []models.TeamMember `validate:"required,min=1,dive"`
}

func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	fields, err := readFields(c)
	if err != nil {
		return err
	}

	var members []models.TeamMember
	if _, err := fields.Decode("members", &members); err != nil {
		return err
	}
	teamName := fields.Trimmed("teamName")
	if teamName == "" || len(members) == 0 {
		return utils.BadRequest("Team name and at least one member are required")
	}
	if err := checkMembers(members, "All member fields are required (fullName, usn, currentSemester, department)"); err != nil {
		return err
	}
	if err := utils.ValidateStruct(teamInput{TeamName: teamName, Members: members}); err != nil {
		return err
	}

	taken, err := tc.nameTaken(user.ID, teamName, 0)
	if err != nil {
		return err
	}
	if taken {
		return utils.Conflict("You already have a team with this name")
	}

	team := models.Team{
		TeamName:     teamName,
		TeamLeaderID: user.ID,
		Members:      members,
		IsActive:     true,
	}
	if err := tc.DB.Create(&team).Error; err != nil {
		return err
	}
	team.TeamLeader = user

	utils.LogEvent("team_created", map[string]interface{}{"team_id": team.ID, "leader_id": user.ID})
	return utils.Respond(c, fiber.StatusCreated, team, "Team created successfully")
}

// GetMyTeams lists the caller's active teams, newest first.
func (tc *TeamController) GetMyTeams(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	teams := []models.Team{}
	if err := tc.DB.Preload("TeamLeader").
		Where("team_leader_id = ? AND is_active = ?", user.ID, true).
		Order("created_at DESC").
		Find(&teams).Error; err != nil {
		return err
	}

	for i := range teams {
		if err := expandTeamEvents(tc.DB, &teams[i]); err != nil {
			return err
		}
	}

	return utils.Respond(c, fiber.StatusOK, teams, "Teams fetched successfully")
}

func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	team, err := tc.loadTeam(c.Params("teamId"), true)
	if err != nil {
		return err
	}
	if !team.IsLedBy(user.ID) {
		return utils.Forbidden("You are not authorized to view this team")
	}
	if err := expandTeamEvents(tc.DB, team); err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, team, "Team fetched successfully")
}

func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	team, err := tc.loadTeam(c.Params("teamId"), false)
	if err != nil {
		return err
	}
	if !team.IsLedBy(user.ID) {
		return utils.Forbidden("Only team leader can update the team")
	}

	fields, err := readFields(c)
	if err != nil {
		return err
	}

	if teamName := fields.Trimmed("teamName"); teamName != "" {
		taken, err := tc.nameTaken(user.ID, teamName, team.ID)
		if err != nil {
			return err
		}
		if taken {
			return utils.Conflict("You already have another team with this name")
		}
		team.TeamName = teamName
	}

	var members []models.TeamMember
	if _, err := fields.Decode("members", &members); err != nil {
		return err
	}
	if len(members) > 0 {
		if err := checkMembers(members, "All member fields are required"); err != nil {
			return err
		}
		team.Members = members
	}

	if err := utils.ValidateStruct(teamInput{TeamName: team.TeamName, Members: team.Members}); err != nil {
		return err
	}

	if err := tc.DB.Model(team).Updates(map[string]interface{}{
		"team_name": team.TeamName,
		"members":   team.Members,
	}).Error; err != nil {
		return err
	}

	team.TeamLeader = user
	if err := expandTeamEvents(tc.DB, team); err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, team, "Team updated successfully")
}

// DeleteTeam deactivates a team. Teams still holding registrations must be
// unregistered first.
func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	team, err := tc.loadTeam(c.Params("teamId"), false)
	if err != nil {
		return err
	}
	if !team.IsLedBy(user.ID) {
		return utils.Forbidden("Only team leader can delete the team")
	}
	if len(team.RegisteredEvents) > 0 {
		return utils.InvalidState("Cannot delete team that is registered for events. Please unregister first.")
	}

	if err := tc.DB.Model(team).Update("is_active", false).Error; err != nil {
		return err
	}

	utils.LogEvent("team_deleted", map[string]interface{}{"team_id": team.ID, "leader_id": user.ID})
	return utils.Respond(c, fiber.StatusOK, nil, "Team deleted successfully")
}

func (tc *TeamController) loadTeam(rawID string, withLeader bool) (*models.Team, error) {
	id, ok := utils.ParseID(rawID)
	if !ok {
		return nil, utils.BadRequest("Invalid team ID")
	}

	q := tc.DB
	if withLeader {
		q = q.Preload("TeamLeader")
	}

	var team models.Team
	if err := q.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Team not found")
		}
		return nil, err
	}
	return &team, nil
}

// nameTaken reports whether leaderID already has another active team named
// name, ignoring case.
func (tc *TeamController) nameTaken(leaderID uint, name string, excludeID uint) (bool, error) {
	q := tc.DB.Model(&models.Team{}).
		Where("team_leader_id = ? AND is_active = ? AND LOWER(team_name) = ?", leaderID, true, strings.ToLower(name))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func checkMembers(members []models.TeamMember, missingMsg string) error {
	for i := range members {
		m := &members[i]
		m.FullName = strings.TrimSpace(m.FullName)
		m.USN = models.NormalizeUSN(m.USN)
		m.Department = strings.TrimSpace(m.Department)

		if m.FullName == "" || m.USN == "" || m.CurrentSemester == 0 || m.Department == "" {
			return utils.BadRequest(missingMsg)
		}
		if m.CurrentSemester < 1 || m.CurrentSemester > 8 {
			return utils.BadRequest("Semester must be between 1 and 8")
		}
	}
	return nil
}

// expandTeamEvents fills team.Events from RegisteredEvents.
func expandTeamEvents(db *gorm.DB, team *models.Team) error {
	team.Events = []models.Event{}
	if len(team.RegisteredEvents) == 0 {
		return nil
	}
	return db.Where("id IN ?", []uint(team.RegisteredEvents)).
		Order(byDate).
		Find(&team.Events).Error
}
