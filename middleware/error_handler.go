package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"unihub/utils"
)

type errorEnvelope struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
}

// ErrorHandler renders every error returned by a handler as the error
// envelope. Unclassified errors become 500; their detail is hidden when
// hideInternal is set.
func ErrorHandler(hideInternal bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		env := errorEnvelope{
			StatusCode: fiber.StatusInternalServerError,
			Message:    err.Error(),
			Errors:     []string{},
		}

		var apiErr *utils.APIError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
			env.StatusCode = apiErr.StatusCode
			env.Message = apiErr.Message
			if apiErr.Errors != nil {
				env.Errors = apiErr.Errors
			}
		case errors.As(err, &fiberErr):
			env.StatusCode = fiberErr.Code
			env.Message = fiberErr.Message
		}

		if env.StatusCode >= fiber.StatusInternalServerError {
			utils.LogError("request_failed", err, map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"ip":     c.IP(),
			})
			if hideInternal && apiErr == nil {
				env.Message = "Internal Server Error"
			}
		}

		return c.Status(env.StatusCode).JSON(env)
	}
}

// NotFoundHandler answers requests that matched no route.
func NotFoundHandler(c *fiber.Ctx) error {
	return utils.NotFound("Route " + c.Method() + " " + c.OriginalURL() + " not found")
}
