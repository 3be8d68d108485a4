package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/pos-api/internal/application/dto"
	"github.com/jhoicas/pos-api/internal/domain"
)

// retryAfterSeconds sugerido al cliente cuando el almacenamiento no responde.
const retryAfterSeconds = "1"

// writeError traduce errores de dominio a status + dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	var shortErr *domain.InsufficientStockError
	var unkErr *domain.UnknownProductError

	switch {
	case errors.As(err, &shortErr):
		details := make([]dto.StockShortageDTO, 0, len(shortErr.Shortages))
		for _, s := range shortErr.Shortages {
			details = append(details, dto.StockShortageDTO{ProductID: s.ProductID, Requested: s.Requested, Available: s.Available})
		}
		return respond(c, fiber.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), details)
	case errors.As(err, &unkErr):
		return respond(c, fiber.StatusNotFound, "UNKNOWN_PRODUCT", err.Error(), fiber.Map{"product_ids": unkErr.ProductIDs})
	case errors.Is(err, domain.ErrInsufficientStock):
		return respond(c, fiber.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, domain.ErrUnknownProduct):
		return respond(c, fiber.StatusNotFound, "UNKNOWN_PRODUCT", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidCart):
		return respond(c, fiber.StatusBadRequest, "INVALID_CART", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return respond(c, fiber.StatusConflict, "CONFLICT", "conflicto de concurrencia, reintente la operación", nil)
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		log.Warn().Err(err).Str("path", c.Path()).Msg("almacenamiento no disponible")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return respond(c, fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE", "almacenamiento no disponible, reintente más tarde", nil)
	case errors.Is(err, domain.ErrInvalidInput):
		return respond(c, fiber.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return respond(c, fiber.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicate):
		return respond(c, fiber.StatusConflict, "DUPLICATE", err.Error(), nil)
	case errors.Is(err, domain.ErrInUse):
		return respond(c, fiber.StatusConflict, "IN_USE", err.Error(), nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return respond(c, fiber.StatusInternalServerError, "INTERNAL", "error interno", nil)
}

func respond(c *fiber.Ctx, status int, code, msg string, details interface{}) error {
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg, Details: details})
}

// idParam lee :id como entero positivo.
func idParam(c *fiber.Ctx) (int64, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

func badID(c *fiber.Ctx) error {
	return respond(c, fiber.StatusBadRequest, "INVALID_ID", "id debe ser un entero positivo", nil)
}

func badBody(c *fiber.Ctx) error {
	return respond(c, fiber.StatusBadRequest, "INVALID_BODY", "cuerpo inválido", nil)
}
