package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig defines the config for CORS middleware
type CORSConfig struct {
	// AllowedOrigins is a list of origins a cross-domain request can be executed from
	AllowedOrigins []string

	AllowCredentials bool
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string

	// MaxAge indicates how long (in seconds) the results of a preflight request can be cached
	MaxAge int
}

// DefaultCORSConfig returns the policy for the given origins.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           3600,
	}
}

// CORS creates a new CORS middleware handler
func CORS(cfg CORSConfig) fiber.Handler {
	allowedOrigins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	allowedMethods := strings.Join(cfg.AllowedMethods, ",")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ",")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ",")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)

		allowed := false
		if len(allowedOrigins) > 0 {
			if _, ok := allowedOrigins[origin]; ok {
				c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
				c.Vary(fiber.HeaderOrigin)
				allowed = true
			}
		} else {
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
			allowed = true
		}

		// Credentials may not be combined with a wildcard origin.
		if cfg.AllowCredentials && allowed && len(allowedOrigins) > 0 {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}

		if c.Method() == fiber.MethodOptions {
			if !allowed {
				return c.SendStatus(fiber.StatusNoContent)
			}
			c.Set(fiber.HeaderAccessControlAllowMethods, allowedMethods)
			c.Set(fiber.HeaderAccessControlAllowHeaders, allowedHeaders)
			c.Set(fiber.HeaderAccessControlExposeHeaders, exposedHeaders)
			c.Set(fiber.HeaderAccessControlMaxAge, maxAge)
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
