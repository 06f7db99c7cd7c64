// Package api assembles the HTTP surface for operating batches.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/influencer-lens/backend/internal/api/handlers"
	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/internal/middleware/ratelimit"
	"github.com/influencer-lens/backend/internal/middleware/security"
	"github.com/influencer-lens/backend/internal/middleware/validation"
	"github.com/influencer-lens/backend/pkg/logger"
)

type Deps struct {
	Client  *llm.Client
	Poller  *batch.Poller
	Cache   handlers.JobCache
	History handlers.JobHistory

	OutputDir    string
	PollInterval time.Duration
	MaxWait      time.Duration

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	RateLimit      float64
	RateBurst      int
	MetricsEnabled bool
	AccessLog      bool
	Development    bool
}

// NewApp builds the fiber app. The returned stop func releases the rate
// limiter and must be called after shutdown.
func NewApp(d Deps) (*fiber.App, func()) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           d.ReadTimeout,
		WriteTimeout:          d.WriteTimeout,
		BodyLimit:             d.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(security.RequestID())
	if d.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${respHeader:X-Request-ID} ${status} ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID, X-Request-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: d.Development}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ready",
			"provider": d.Client.ProviderName(),
			"model":    d.Client.Model(),
			"breaker":  d.Client.Breaker(),
		})
	})

	if d.MetricsEnabled {
		app.Get("/metrics", metrics.MetricsHandler())
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: d.RateLimit,
		Burst:             d.RateBurst,
		Logger:            logger.GetLogger(),
	})

	api := app.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{Logger: logger.GetLogger()}))

	batchHandler := handlers.NewBatchHandler(d.Client, d.Poller, d.Cache)
	api.Get("/batches", batchHandler.ListBatches)
	api.Get("/batches/:id", validation.IDParams("id"), batchHandler.GetBatch)
	api.Post("/batches/:id/cancel", validation.IDParams("id"), batchHandler.CancelBatch)

	checkpointHandler := handlers.NewCheckpointHandler(d.OutputDir)
	api.Get("/checkpoints", checkpointHandler.ListCheckpoints)

	if d.History != nil {
		jobsHandler := handlers.NewJobsHandler(d.History)
		api.Get("/jobs", jobsHandler.ListJobs)
		api.Get("/jobs/:id", validation.IDParams("id"), jobsHandler.GetJob)
		api.Get("/results/:kind/:id", validation.IDParams("id"), jobsHandler.GetResult)
	}

	progressHandler := handlers.NewProgressHandler(d.Poller, d.PollInterval, d.MaxWait)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress", websocket.New(progressHandler.HandleConnection))

	return app, limiter.Stop
}
