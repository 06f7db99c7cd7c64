package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("msgbatch_01HkcTjaV5uDC8jWR4ZsDV8d"))
	assert.True(t, ValidID("batch_abc-123"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../etc/passwd"))
	assert.False(t, ValidID("a b"))
	assert.False(t, ValidID(strings.Repeat("x", 129)))
}

func TestIDParams(t *testing.T) {
	app := fiber.New()
	app.Get("/batches/:id", IDParams("id"), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/batches/batch_1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/batches/bad%20id", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMiddlewareContentType(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("POST", "/", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/xml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	req = httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
