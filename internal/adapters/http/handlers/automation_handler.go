package handlers

import (
	"errors"

	"saccotrack/internal/core/domain"
	"saccotrack/internal/core/services"
	"saccotrack/internal/pkg/pagination"
	"saccotrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AutomationHandler exposes manual rule triggers and audit views
type AutomationHandler struct {
	scheduler     *services.Scheduler
	reportService *services.ReportService
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(scheduler *services.Scheduler, reportService *services.ReportService) *AutomationHandler {
	return &AutomationHandler{
		scheduler:     scheduler,
		reportService: reportService,
	}
}

// TriggerDaily runs the daily rule group on demand
func (h *AutomationHandler) TriggerDaily(c *fiber.Ctx) error {
	results, err := h.scheduler.TriggerDaily(c.Context())
	return triggerResponse(c, "Daily rules executed", results, err)
}

// TriggerWeekly runs the weekly rule group on demand
func (h *AutomationHandler) TriggerWeekly(c *fiber.Ctx) error {
	results, err := h.scheduler.TriggerWeekly(c.Context())
	return triggerResponse(c, "Weekly rules executed", results, err)
}

// TriggerMonthly runs the monthly rule group on demand
func (h *AutomationHandler) TriggerMonthly(c *fiber.Ctx) error {
	results, err := h.scheduler.TriggerMonthly(c.Context())
	return triggerResponse(c, "Monthly rules executed", results, err)
}

func triggerResponse(c *fiber.Ctx, message string, results []services.RuleResult, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			return response.Conflict(c, "A run for this group is already in progress")
		case errors.Is(err, domain.ErrStoreUnavailable):
			return response.ServiceUnavailable(c, "Ledger store is unavailable")
		default:
			return response.InternalServerError(c, "Rule run failed")
		}
	}

	return response.Success(c, message, fiber.Map{
		"results": results,
	})
}

// Status reports last and next run per rule group
func (h *AutomationHandler) Status(c *fiber.Ctx) error {
	return response.Success(c, "Automation status retrieved successfully", h.scheduler.Status())
}

// Logs lists automation audit log entries
func (h *AutomationHandler) Logs(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	logs, total, err := h.reportService.ListAuditLogs(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list automation logs")
	}

	return response.Success(c, "Automation logs retrieved successfully", pagination.NewResponse(logs, params, total))
}

// Reports lists generated monthly reports
func (h *AutomationHandler) Reports(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	reports, total, err := h.reportService.ListMonthlyReports(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list monthly reports")
	}

	return response.Success(c, "Monthly reports retrieved successfully", pagination.NewResponse(reports, params, total))
}
