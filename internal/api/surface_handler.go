package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/site"
)

// SurfaceHandler exposes rotating surfaces and their manual controls.
type SurfaceHandler struct {
	logger   *zap.Logger
	surfaces *site.Surfaces
}

func NewSurfaceHandler(logger *zap.Logger, surfaces *site.Surfaces) *SurfaceHandler {
	return &SurfaceHandler{logger: logger, surfaces: surfaces}
}

func (h *SurfaceHandler) surface(c *fiber.Ctx) (*site.Surface, error) {
	s, ok := h.surfaces.Get(c.Params("surface"))
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown surface"})
	}
	return s, nil
}

// ListSurfaces returns surface names.
func (h *SurfaceHandler) ListSurfaces(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"surfaces": h.surfaces.Names()})
}

// GetSurface returns what a surface currently shows.
func (h *SurfaceHandler) GetSurface(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	return c.JSON(s.View())
}

// Navigate re-resolves the surface for a new page path.
func (h *SurfaceHandler) Navigate(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	var req NavigateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	v := s.Navigate(req.Path)
	h.logger.Info("api.surface_navigated",
		zap.String("surface", s.Name()),
		zap.String("path", req.Path),
		zap.String("market", v.Market.Code))
	return c.JSON(v)
}

func (h *SurfaceHandler) Next(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	return c.JSON(s.Next())
}

func (h *SurfaceHandler) Previous(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	return c.JSON(s.Previous())
}

func (h *SurfaceHandler) Pause(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	return c.JSON(s.Pause())
}

// GoTo selects a page. An index past the last page is rejected and changes nothing.
func (h *SurfaceHandler) GoTo(c *fiber.Ctx) error {
	s, err := h.surface(c)
	if s == nil {
		return err
	}
	var req GoToRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	v, ok := s.GoTo(*req.Index)
	if !ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "index out of range",
			"view":  v,
		})
	}
	return c.JSON(v)
}
