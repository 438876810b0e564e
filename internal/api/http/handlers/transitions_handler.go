package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-workorders/internal/api/dto"
	"github.com/spec-kit/fleet-workorders/internal/service"
	apperrors "github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

// TransitionsHandler serves custody handoffs and notes.
type TransitionsHandler struct {
	service *service.WorkOrderService
}

// NewTransitionsHandler constructs handler.
func NewTransitionsHandler(workOrders *service.WorkOrderService) *TransitionsHandler {
	return &TransitionsHandler{service: workOrders}
}

// SendToWarehouse POST /work-orders/:id/send-to-warehouse.
func (h *TransitionsHandler) SendToWarehouse(c *fiber.Ctx) error {
	req, err := parseTransition(c)
	if err != nil {
		return err
	}
	wo, err := h.service.SendToWarehouse(c.UserContext(), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// SendToPurchasing POST /work-orders/:id/send-to-purchasing.
func (h *TransitionsHandler) SendToPurchasing(c *fiber.Ctx) error {
	req, err := parseTransition(c)
	if err != nil {
		return err
	}
	wo, err := h.service.SendToPurchasing(c.UserContext(), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// ReturnToShop POST /work-orders/:id/return-to-shop.
func (h *TransitionsHandler) ReturnToShop(c *fiber.Ctx) error {
	req, err := parseTransition(c)
	if err != nil {
		return err
	}
	wo, err := h.service.ReturnToShop(c.UserContext(), c.Params("id"), req.Notes, req.Origin, req.Destination)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// ReturnToWarehouse POST /work-orders/:id/return-to-warehouse.
func (h *TransitionsHandler) ReturnToWarehouse(c *fiber.Ctx) error {
	req, err := parseTransition(c)
	if err != nil {
		return err
	}
	wo, err := h.service.ReturnToWarehouse(c.UserContext(), c.Params("id"), req.Notes, req.Destination)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// AddNote POST /work-orders/:id/notes.
func (h *TransitionsHandler) AddNote(c *fiber.Ctx) error {
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	wo, err := h.service.AddNote(c.UserContext(), c.Params("id"), req.Text, req.Sector)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// parseTransition accepts an empty body.
func parseTransition(c *fiber.Ctx) (dto.TransitionRequest, error) {
	var req dto.TransitionRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	return req, nil
}
