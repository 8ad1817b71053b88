package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"unihub/models"
	"unihub/utils"
)

const AccessTokenCookie = "accessToken"

// Protected authenticates the request with the access token from the
// accessToken cookie or a Bearer Authorization header.
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(AccessTokenCookie)
		if token == "" {
			authHeader := c.Get(fiber.HeaderAuthorization)
			if authHeader != "" {
				tokenParts := strings.SplitN(authHeader, " ", 2)
				if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
					return utils.Unauthorized("Invalid authorization format")
				}
				token = strings.TrimSpace(tokenParts[1])
			}
		}
		if token == "" {
			return utils.Unauthorized("Unauthorized request")
		}

		claims, err := utils.ParseAccessToken(token)
		if err != nil {
			return utils.Unauthorized("Invalid access token")
		}

		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Unauthorized("Invalid access token")
			}
			return err
		}

		if !user.IsActive {
			return utils.Forbidden("Account is not active")
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)

		return c.Next()
	}
}

// CurrentUser returns the account stored by Protected.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
