package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amass-me/locale-engine/internal/store"
	"github.com/amass-me/locale-engine/pkg/model"
)

// GeoState reports the geo cache snapshot for health output.
type GeoState interface {
	Entry() (model.CacheEntry, bool)
}

// Health groups what /health inspects. NATS is optional.
type Health struct {
	Store store.Store
	Geo   GeoState
	NATS  *nats.Conn
	Now   func() time.Time
}

func RegisterRoutes(app *fiber.App, health Health, marketHandler *MarketHandler, surfaceHandler *SurfaceHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", health.handle)

	// API routes
	v1 := app.Group("/api/v1")
	v1.Get("/market", marketHandler.GetMarket)
	v1.Get("/link", marketHandler.GetLink)
	v1.Get("/offices", marketHandler.GetOffices)
	v1.Get("/markets", marketHandler.ListMarkets)

	surfaces := v1.Group("/surfaces")
	surfaces.Get("/", surfaceHandler.ListSurfaces)
	surfaces.Get("/:surface", surfaceHandler.GetSurface)
	surfaces.Post("/:surface/navigate", surfaceHandler.Navigate)
	surfaces.Post("/:surface/next", surfaceHandler.Next)
	surfaces.Post("/:surface/previous", surfaceHandler.Previous)
	surfaces.Post("/:surface/goto", surfaceHandler.GoTo)
	surfaces.Post("/:surface/pause", surfaceHandler.Pause)
}

// handle reports degraded only for the store and NATS; a stale or empty geo cache is
// normal operation since lookups fall back locally.
func (h Health) handle(c *fiber.Ctx) error {
	checks := map[string]string{
		"store": "ok",
	}
	status := "ok"
	code := fiber.StatusOK

	if h.NATS != nil {
		checks["nats"] = "ok"
		if !h.NATS.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := h.NATS.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	if h.Store != nil {
		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Store.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	body := fiber.Map{
		"status": status,
		"checks": checks,
	}
	if h.Geo != nil {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		geo := fiber.Map{"cache": "empty"}
		if e, ok := h.Geo.Entry(); ok {
			geo["cache"] = "fresh"
			if e.Expired(now()) {
				geo["cache"] = "stale"
			}
			geo["market"] = e.Value.Market.Code
			geo["fetched_at"] = e.Value.FetchedAt
			geo["expires_at"] = e.ExpiresAt
		}
		body["geo"] = geo
	}
	return c.Status(code).JSON(body)
}
