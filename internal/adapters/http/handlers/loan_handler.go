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

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// Request creates a pending loan for a member
func (h *LoanHandler) Request(c *fiber.Ctx) error {
	var req services.RequestLoanInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	loan, err := h.loanService.Request(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Member and a positive amount are required")
		case errors.Is(err, domain.ErrMemberNotFound):
			return response.NotFound(c, "Member not found")
		case errors.Is(err, domain.ErrMemberNotApproved):
			return response.Forbidden(c, "Member is not approved")
		default:
			return response.InternalServerError(c, "Failed to request loan")
		}
	}

	return response.Created(c, "Loan requested successfully", fiber.Map{
		"loan": loan,
	})
}

// Approve approves a pending loan
func (h *LoanHandler) Approve(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Approve(c.Context(), id)
	if err != nil {
		return loanError(c, err, "Failed to approve loan")
	}

	return response.Success(c, "Loan approved successfully", fiber.Map{
		"loan": loan,
	})
}

// Reject rejects a pending loan
func (h *LoanHandler) Reject(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Reject(c.Context(), id)
	if err != nil {
		return loanError(c, err, "Failed to reject loan")
	}

	return response.Success(c, "Loan rejected successfully", fiber.Map{
		"loan": loan,
	})
}

// Repay settles an approved loan in full
func (h *LoanHandler) Repay(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Repay(c.Context(), id)
	if err != nil {
		return loanError(c, err, "Failed to repay loan")
	}

	return response.Success(c, "Loan repaid successfully", fiber.Map{
		"loan": loan,
	})
}

// Get returns a single loan
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.GetByID(c.Context(), id)
	if err != nil {
		return loanError(c, err, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan,
	})
}

// List lists loans, optionally filtered by member
func (h *LoanHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	var memberID uint
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid member_id filter")
		}
		memberID = uint(id)
	}

	loans, total, err := h.loanService.List(c.Context(), memberID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", pagination.NewResponse(loans, params, total))
}

// loanError maps loan service errors to HTTP responses
func loanError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrLoanNotFound), errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Loan not found")
	case errors.Is(err, domain.ErrInvalidLoanStatus):
		return response.Conflict(c, "Loan is not pending approval")
	case errors.Is(err, domain.ErrLoanNotApproved):
		return response.Conflict(c, "Loan is not approved")
	default:
		return response.InternalServerError(c, fallback)
	}
}
