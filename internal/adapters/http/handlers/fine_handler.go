package handlers

import (
	"errors"
	"strconv"

	"saccotrack/internal/core/domain"
	"saccotrack/internal/core/services"
	"saccotrack/internal/pkg/pagination"
	"saccotrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// FineHandler handles fine endpoints
type FineHandler struct {
	fineService *services.FineService
}

// NewFineHandler creates a new fine handler
func NewFineHandler(fineService *services.FineService) *FineHandler {
	return &FineHandler{
		fineService: fineService,
	}
}

// Issue records a manual fine against a member
func (h *FineHandler) Issue(c *fiber.Ctx) error {
	var req services.IssueFineInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	fine, err := h.fineService.Issue(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Member, a positive amount and a reason are required")
		case errors.Is(err, domain.ErrMemberNotFound):
			return response.NotFound(c, "Member not found")
		default:
			return response.InternalServerError(c, "Failed to issue fine")
		}
	}

	return response.Created(c, "Fine issued successfully", fiber.Map{
		"fine": fine,
	})
}

// Pay marks a fine as paid
func (h *FineHandler) Pay(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid fine ID")
	}

	fine, err := h.fineService.Pay(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFineNotFound), errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Fine not found")
		case errors.Is(err, domain.ErrFineAlreadyPaid):
			return response.Conflict(c, "Fine already paid")
		default:
			return response.InternalServerError(c, "Failed to pay fine")
		}
	}

	return response.Success(c, "Fine paid successfully", fiber.Map{
		"fine": fine,
	})
}

// List lists fines, optionally filtered by member
func (h *FineHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	var memberID uint
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid member_id filter")
		}
		memberID = uint(id)
	}

	fines, total, err := h.fineService.List(c.Context(), memberID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list fines")
	}

	return response.Success(c, "Fines retrieved successfully", pagination.NewResponse(fines, params, total))
}
