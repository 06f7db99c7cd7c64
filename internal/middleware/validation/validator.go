package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Provider batch ids ("msgbatch_...", "batch_...") and content ids share this shape.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:]{1,128}$`)

type Config struct {
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects write requests with an unexpected content type.
func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
				cfg.Logger.Warn("Unsupported content type",
					zap.String("ip", c.IP()),
					zap.String("content_type", contentType),
				)
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		return c.Next()
	}
}

// IDParams validates the named route parameters as ids.
func IDParams(names ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, name := range names {
			if !ValidID(c.Params(name)) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid " + name,
				})
			}
		}
		return c.Next()
	}
}

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func allowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
