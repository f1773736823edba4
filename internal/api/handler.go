package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/market"
	"github.com/amass-me/locale-engine/pkg/model"
)

// MarketHandler serves market resolution, links and the prioritized catalog.
type MarketHandler struct {
	logger       *zap.Logger
	resolver     *market.Resolver
	catalog      market.Catalog
	defaultLimit int
}

// NewMarketHandler creates a MarketHandler. defaultLimit applies when a request sets no cap.
func NewMarketHandler(logger *zap.Logger, resolver *market.Resolver, catalog market.Catalog, defaultLimit int) *MarketHandler {
	return &MarketHandler{
		logger:       logger,
		resolver:     resolver,
		catalog:      catalog,
		defaultLimit: defaultLimit,
	}
}

func (h *MarketHandler) describe(m model.Market, src market.Source) MarketResponse {
	reg := h.resolver.Registry()
	return MarketResponse{
		Code:   m.Code,
		Name:   m.DisplayName,
		Slug:   reg.SlugFor(m),
		Source: src,
		Href:   reg.BuildLink(m, "/"),
	}
}

// GetMarket resolves ?path= to a market.
func (h *MarketHandler) GetMarket(c *fiber.Ctx) error {
	path := c.Query("path")
	if err := validatePath(path); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	m, src := h.resolver.ResolveWithSource(path)
	return c.JSON(h.describe(m, src))
}

// GetLink builds ?base= for the market resolved from ?path=.
func (h *MarketHandler) GetLink(c *fiber.Ctx) error {
	path, base := c.Query("path"), c.Query("base")
	if err := validatePath(path); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validatePath(base); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	m := h.resolver.ResolveMarket(path)
	return c.JSON(LinkResponse{
		Href:   h.resolver.Registry().BuildLink(m, base),
		Market: m.Code,
	})
}

// GetOffices returns the catalog with the resolved market's offices first.
func (h *MarketHandler) GetOffices(c *fiber.Ctx) error {
	path := c.Query("path")
	if err := validatePath(path); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	limit, err := parseLimit(c.Query("cap"), h.defaultLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	m, src := h.resolver.ResolveWithSource(path)
	offices := h.catalog.ForMarket(m, limit)
	h.logger.Debug("api.offices",
		zap.String("market", m.Code),
		zap.String("source", string(src)),
		zap.Int("count", len(offices)))

	return c.JSON(OfficesResponse{Market: h.describe(m, src), Offices: offices})
}

// ListMarkets returns every configured market with its landing link.
func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	reg := h.resolver.Registry()
	markets := reg.Markets()
	out := make([]MarketListItem, 0, len(markets))
	for _, m := range markets {
		out = append(out, MarketListItem{
			Code:    m.Code,
			Name:    m.DisplayName,
			Slug:    reg.SlugFor(m),
			Href:    reg.BuildLink(m, "/home"),
			Default: reg.IsDefault(m),
		})
	}
	return c.JSON(out)
}
