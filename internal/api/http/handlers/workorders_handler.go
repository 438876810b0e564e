package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-workorders/internal/api/dto"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/repository"
	"github.com/spec-kit/fleet-workorders/internal/service"
	apperrors "github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

const maxPageSize = 500

// WorkOrdersHandler serves the work order CRUD endpoints.
type WorkOrdersHandler struct {
	service *service.WorkOrderService
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(workOrders *service.WorkOrderService) *WorkOrdersHandler {
	return &WorkOrdersHandler{service: workOrders}
}

// List GET /work-orders.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	filter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	list, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.WorkOrderSummary, 0, len(list))
	for i := range list {
		items = append(items, dto.NewWorkOrderSummary(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /work-orders.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateWorkOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	wo, err := h.service.Create(c.UserContext(), service.WorkOrderDraft{
		Status:          req.Status,
		Vehicle:         req.Vehicle.ToDomainRef(),
		Requester:       req.Requester.ToDomainRef(),
		Mechanic:        req.Mechanic.ToDomainRef(),
		Priority:        req.Priority,
		ReportedDefects: req.ReportedDefects,
		PartsServices:   req.PartsServices,
		Notes:           req.Notes,
		ExecutionOrder:  req.ExecutionOrder,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// Get GET /work-orders/:id.
func (h *WorkOrdersHandler) Get(c *fiber.Ctx) error {
	wo, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// Update PATCH /work-orders/:id.
func (h *WorkOrdersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateWorkOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	patch := service.WorkOrderPatch{
		Status:              req.Status,
		Priority:            req.Priority,
		ReportedDefects:     req.ReportedDefects,
		PartsServices:       req.PartsServices,
		Notes:               req.Notes,
		ExecutionOrder:      req.ExecutionOrder,
		ClearExecutionOrder: req.ClearExecutionOrder,
		ExpectedVersion:     req.ExpectedVersion,
	}
	if v := c.Get(fiber.HeaderIfMatch); v != "" && patch.ExpectedVersion == nil {
		version, err := strconv.ParseInt(strings.Trim(v, `"`), 10, 64)
		if err != nil {
			return apperrors.NewValidationError("If-Match must carry a version number", nil)
		}
		patch.ExpectedVersion = &version
	}
	patch.Vehicle = refPtr(req.Vehicle)
	patch.Requester = refPtr(req.Requester)
	patch.Mechanic = refPtr(req.Mechanic)

	wo, err := h.service.Update(c.UserContext(), c.Params("id"), patch, req.StatusNote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

// Delete DELETE /work-orders/:id. Deleting an unknown id is not an error.
func (h *WorkOrdersHandler) Delete(c *fiber.Ctx) error {
	removed, err := h.service.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": removed}})
}

// AppendHistory POST /work-orders/:id/history.
func (h *WorkOrdersHandler) AppendHistory(c *fiber.Ctx) error {
	var req dto.HistoryEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	wo, err := h.service.AppendHistoryEvent(c.UserContext(), c.Params("id"), domain.HistoryEvent{
		Kind:          req.Kind,
		From:          req.From,
		To:            req.To,
		StatusAtEvent: req.StatusAtEvent,
		Note:          req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo)})
}

func parseListQuery(c *fiber.Ctx) (service.WorkOrderListFilter, error) {
	filter := service.WorkOrderListFilter{}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.WorkOrderStatus(strings.ToUpper(part)))
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return filter, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	for _, part := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.Priority(strings.ToUpper(part)))
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}

	switch strings.ToLower(c.Query("order")) {
	case "", "updated":
		filter.OrderBy = repository.OrderUpdatedDesc
	case "execution":
		filter.OrderBy = repository.OrderExecutionAsc
	case "created":
		filter.OrderBy = repository.OrderCreatedAtDesc
	default:
		return filter, apperrors.NewValidationError("order must be updated, execution or created", nil)
	}

	filter.Limit = c.QueryInt("limit", 0)
	if filter.Limit < 0 || filter.Limit > maxPageSize {
		return filter, apperrors.NewValidationError("limit out of range", map[string]any{"max": maxPageSize})
	}
	filter.Offset = c.QueryInt("offset", 0)
	if filter.Offset < 0 {
		return filter, apperrors.NewValidationError("offset must not be negative", nil)
	}
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func refPtr(r *dto.SubjectRef) *domain.SubjectRef {
	if r == nil {
		return nil
	}
	ref := r.ToDomainRef()
	return &ref
}
