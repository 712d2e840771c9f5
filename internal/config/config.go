package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode    string
	Port       string
	Database   DatabaseConfig
	Automation AutomationConfig
	Notify     NotifyConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// AutomationConfig holds the financial-rules engine settings. Nothing
// in the rule engine is hard-coded; these are the knobs.
type AutomationConfig struct {
	InterestRate            float64       // weekly, applied on current amount
	OverdueFineAmount       float64       // one-time fine on overdue detection
	WeeklyPenaltyAmount     float64       // recurring fine while overdue
	InactivityFineAmount    float64       // one-time fine per inactivity episode
	MissedSavingFineAmount  float64       // one fine per member per missed week
	InactivityThresholdDays int           // days without activity before deactivation
	MissedSavingMaxAgeDays  int           // max age of the latest saving on meeting day
	MeetingWeekday          time.Weekday  // weekday the missed-savings rule is effective
	Timezone                string        // schedule timezone
	DailyCron               string        // cron spec, daily rule group
	WeeklyCron              string        // cron spec, weekly rule group
	MonthlyCron             string        // cron spec, monthly rule group
	EntityTimeout           time.Duration // per-entity operation timeout
	MaxRetries              int           // bounded retries for transient store errors
	Workers                 int           // parallel entity workers per batch
}

// NotifyConfig holds the payment-notification gateway settings
type NotifyConfig struct {
	GatewayURL string
	Token      string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	automation, err := loadAutomationConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:    appMode,
		Port:       getEnv("PORT", "3000"),
		Database:   loadDatabaseConfig(appMode),
		Automation: automation,
		Notify: NotifyConfig{
			GatewayURL: getEnv("NOTIFY_GATEWAY_URL", ""),
			Token:      getEnv("NOTIFY_GATEWAY_TOKEN", ""),
		},
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "saccotrack"),
	}
}

// loadAutomationConfig loads rule engine settings with their default values
func loadAutomationConfig() (AutomationConfig, error) {
	weekday, err := parseWeekday(getEnv("MEETING_WEEKDAY", "Sunday"))
	if err != nil {
		return AutomationConfig{}, err
	}

	tz := getEnv("SCHEDULE_TIMEZONE", "Africa/Nairobi")
	if _, err := time.LoadLocation(tz); err != nil {
		return AutomationConfig{}, fmt.Errorf("invalid SCHEDULE_TIMEZONE '%s': %w", tz, err)
	}

	timeoutSecs, _ := strconv.Atoi(getEnv("ENTITY_TIMEOUT_SECONDS", "10"))

	return AutomationConfig{
		InterestRate:            getEnvFloat("INTEREST_RATE", 0.10),
		OverdueFineAmount:       getEnvFloat("OVERDUE_FINE_AMOUNT", 50),
		WeeklyPenaltyAmount:     getEnvFloat("WEEKLY_PENALTY_AMOUNT", 50),
		InactivityFineAmount:    getEnvFloat("INACTIVITY_FINE_AMOUNT", 100),
		MissedSavingFineAmount:  getEnvFloat("MISSED_SAVING_FINE_AMOUNT", 50),
		InactivityThresholdDays: getEnvInt("INACTIVITY_THRESHOLD_DAYS", 90),
		MissedSavingMaxAgeDays:  getEnvInt("MISSED_SAVING_MAX_AGE_DAYS", 7),
		MeetingWeekday:          weekday,
		Timezone:                tz,
		DailyCron:               getEnv("DAILY_CRON", "0 6 * * *"),
		WeeklyCron:              getEnv("WEEKLY_CRON", "0 7 * * 0"),
		MonthlyCron:             getEnv("MONTHLY_CRON", "0 8 1 * *"),
		EntityTimeout:           time.Duration(timeoutSecs) * time.Second,
		MaxRetries:              getEnvInt("ENTITY_MAX_RETRIES", 3),
		Workers:                 getEnvInt("BATCH_WORKERS", 4),
	}, nil
}

// Location resolves the configured schedule timezone
func (a AutomationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		// Timezone is validated at load; fall back rather than crash
		return time.UTC
	}
	return loc
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid MEETING_WEEKDAY: '%s'", name)
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://app.saccotrack.io"
	}
	return origins
}
