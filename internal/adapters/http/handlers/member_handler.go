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

// MemberHandler handles member endpoints
type MemberHandler struct {
	memberService *services.MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{
		memberService: memberService,
	}
}

// parseIDParam reads a numeric :id path parameter
func parseIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// Register registers a new member in pending status
func (h *MemberHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterMemberInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	member, err := h.memberService.Register(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Full name and phone are required")
		case errors.Is(err, domain.ErrDuplicateEntry):
			return response.Conflict(c, "Phone number already registered")
		default:
			return response.InternalServerError(c, "Failed to register member")
		}
	}

	return response.Created(c, "Member registered successfully", fiber.Map{
		"member": member.ToResponse(),
	})
}

// Approve approves a pending member
func (h *MemberHandler) Approve(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid member ID")
	}

	member, err := h.memberService.Approve(c.Context(), id)
	if err != nil {
		return memberError(c, err, "Failed to approve member")
	}

	return response.Success(c, "Member approved successfully", fiber.Map{
		"member": member.ToResponse(),
	})
}

// Reject rejects a pending member
func (h *MemberHandler) Reject(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid member ID")
	}

	member, err := h.memberService.Reject(c.Context(), id)
	if err != nil {
		return memberError(c, err, "Failed to reject member")
	}

	return response.Success(c, "Member rejected successfully", fiber.Map{
		"member": member.ToResponse(),
	})
}

// Get returns a single member
func (h *MemberHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid member ID")
	}

	member, err := h.memberService.GetByID(c.Context(), id)
	if err != nil {
		return memberError(c, err, "Failed to get member")
	}

	return response.Success(c, "Member retrieved successfully", fiber.Map{
		"member": member.ToResponse(),
	})
}

// Summary returns a member together with fines due and open loans
func (h *MemberHandler) Summary(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid member ID")
	}

	summary, err := h.memberService.Summary(c.Context(), id)
	if err != nil {
		return memberError(c, err, "Failed to get member summary")
	}

	return response.Success(c, "Member summary retrieved successfully", summary)
}

// List lists members
func (h *MemberHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	members, total, err := h.memberService.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list members")
	}

	out := make([]interface{}, 0, len(members))
	for _, m := range members {
		out = append(out, m.ToResponse())
	}

	return response.Success(c, "Members retrieved successfully", pagination.NewResponse(out, params, total))
}

// memberError maps member service errors to HTTP responses
func memberError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrMemberNotFound), errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Member not found")
	case errors.Is(err, domain.ErrMemberNotPending):
		return response.Conflict(c, "Member is not pending approval")
	default:
		return response.InternalServerError(c, fallback)
	}
}
