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

// SavingHandler handles saving endpoints
type SavingHandler struct {
	savingService *services.SavingService
}

// NewSavingHandler creates a new saving handler
func NewSavingHandler(savingService *services.SavingService) *SavingHandler {
	return &SavingHandler{
		savingService: savingService,
	}
}

// Deposit records a saving deposit for a member
func (h *SavingHandler) Deposit(c *fiber.Ctx) error {
	var req services.DepositInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	saving, err := h.savingService.Deposit(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Member and a positive amount are required")
		case errors.Is(err, domain.ErrMemberNotFound):
			return response.NotFound(c, "Member not found")
		case errors.Is(err, domain.ErrMemberNotApproved):
			return response.Forbidden(c, "Member is not approved")
		default:
			return response.InternalServerError(c, "Failed to record deposit")
		}
	}

	return response.Created(c, "Deposit recorded successfully", fiber.Map{
		"saving": saving,
	})
}

// List lists savings, optionally filtered by member
func (h *SavingHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	var memberID uint
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid member_id filter")
		}
		memberID = uint(id)
	}

	savings, total, err := h.savingService.List(c.Context(), memberID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list savings")
	}

	return response.Success(c, "Savings retrieved successfully", pagination.NewResponse(savings, params, total))
}
