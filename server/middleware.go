package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/finding"
	"github.com/surfacehq/surface/license"
)

// errorBody is the JSON error envelope: {"error": "..."}.
func errorBody(message string) fiber.Map {
	return fiber.Map{"error": message}
}

// errorHandler maps domain errors onto HTTP statuses. Transition errors
// are conflicts: the client's view of the finding was stale.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorBody(fiberErr.Message))
	}

	var terr *finding.TransitionError
	if errors.As(err, &terr) {
		return c.Status(fiber.StatusConflict).JSON(errorBody(terr.Error()))
	}

	switch {
	case errors.Is(err, surface.ErrApprovalRequired):
		return c.Status(fiber.StatusForbidden).JSON(errorBody(surface.ErrApprovalRequired.Error()))
	case errors.Is(err, surface.ErrModuleGated):
		return c.Status(fiber.StatusForbidden).JSON(errorBody(surface.ErrModuleGated.Error()))
	case surface.IsKind(err, surface.KindNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorBody("not found"))
	case surface.IsKind(err, surface.KindValidation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorBody(err.Error()))
	case surface.IsKind(err, surface.KindPermission):
		return c.Status(fiber.StatusForbidden).JSON(errorBody(err.Error()))
	case surface.IsKind(err, surface.KindConflict):
		return c.Status(fiber.StatusConflict).JSON(errorBody(err.Error()))
	}

	s.logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody("internal server error"))
}

// requireModule gates a route group on the tenant's entitlements. The
// tenant record is read per request so plan changes apply without restart.
func (s *Server) requireModule(module license.Module) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ent, err := s.entitlements(c)
		if err != nil {
			return err
		}
		if err := s.gate.Load().Require(module, ent); err != nil {
			return err
		}
		return c.Next()
	}
}

func (s *Server) entitlements(c *fiber.Ctx) (license.Entitlements, error) {
	rec, err := s.stores.GetTenant(c.Context(), tenantID(c))
	if err != nil {
		if surface.IsKind(err, surface.KindNotFound) {
			return license.Entitlements{}, surface.NewNotFoundError("server.entitlements",
				surface.ErrTenantNotFound)
		}
		return license.Entitlements{}, err
	}
	return rec.Entitlements(), nil
}
