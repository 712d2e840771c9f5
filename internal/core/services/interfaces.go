package services

import (
	"saccotrack/internal/adapters/persistence/models"
)

// Notifier delivers payment confirmations and reminders to members.
// It is consumed fire-and-forget: delivery failure is logged and never
// blocks or rolls back a committed ledger mutation.
type Notifier interface {
	NotifyPaymentConfirmation(member *models.Member, amount float64, kind string, newBalance float64) error
	NotifyReminder(member *models.Member, amount float64, kind string, daysLate int) error
}
