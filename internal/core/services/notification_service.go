package services

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/config"
)

// NotificationService pushes payment confirmations and reminders to
// members through an SMS/mobile-money gateway. Disabled (a silent
// no-op) when no gateway is configured, so dev environments run
// without one.
type NotificationService struct {
	gatewayURL string
	token      string
	enabled    bool
	client     *http.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg config.NotifyConfig) *NotificationService {
	return &NotificationService{
		gatewayURL: cfg.GatewayURL,
		token:      cfg.Token,
		enabled:    cfg.GatewayURL != "" && cfg.Token != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// sendPush posts one message to the gateway
func (s *NotificationService) sendPush(phone, message string) error {
	if !s.enabled {
		return nil
	}

	data := url.Values{}
	data.Set("to", phone)
	data.Set("message", message)

	req, err := http.NewRequest("POST", s.gatewayURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

// NotifyPaymentConfirmation confirms a received payment or deposit
func (s *NotificationService) NotifyPaymentConfirmation(member *models.Member, amount float64, kind string, newBalance float64) error {
	message := fmt.Sprintf(
		"Dear %s, your %s of %.2f has been received. New balance: %.2f. Thank you for saving with us.",
		member.FullName,
		kindLabel(kind),
		amount,
		newBalance,
	)
	return s.sendPush(member.Phone, message)
}

// NotifyReminder reminds a member about an amount due
func (s *NotificationService) NotifyReminder(member *models.Member, amount float64, kind string, daysLate int) error {
	var message string
	if daysLate > 0 {
		message = fmt.Sprintf(
			"Dear %s, a %s of %.2f has been charged (%s overdue). Please settle at the next meeting.",
			member.FullName,
			kindLabel(kind),
			amount,
			pluralDays(daysLate),
		)
	} else {
		message = fmt.Sprintf(
			"Dear %s, a %s of %.2f has been charged. Please settle at the next meeting.",
			member.FullName,
			kindLabel(kind),
			amount,
		)
	}
	return s.sendPush(member.Phone, message)
}

func kindLabel(kind string) string {
	switch kind {
	case "saving-deposit":
		return "savings deposit"
	case "loan-repayment":
		return "loan repayment"
	case "fine-payment":
		return "fine payment"
	case "loan-overdue":
		return "late-payment fine"
	case "weekly-penalty":
		return "weekly penalty"
	case "missed-saving":
		return "missed-saving fine"
	default:
		return kind
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}
