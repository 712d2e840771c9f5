package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	day, err := parseWeekday("sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)

	day, err = parseWeekday("Wednesday")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, day)

	_, err = parseWeekday("someday")
	assert.Error(t, err)
}

func TestAutomationDefaults(t *testing.T) {
	auto, err := loadAutomationConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.10, auto.InterestRate, 0.0001)
	assert.InDelta(t, 50, auto.OverdueFineAmount, 0.0001)
	assert.InDelta(t, 50, auto.WeeklyPenaltyAmount, 0.0001)
	assert.InDelta(t, 100, auto.InactivityFineAmount, 0.0001)
	assert.InDelta(t, 50, auto.MissedSavingFineAmount, 0.0001)
	assert.Equal(t, 90, auto.InactivityThresholdDays)
	assert.Equal(t, 7, auto.MissedSavingMaxAgeDays)
	assert.Equal(t, time.Sunday, auto.MeetingWeekday)
	assert.Equal(t, "Africa/Nairobi", auto.Timezone)
	assert.Equal(t, 10*time.Second, auto.EntityTimeout)
	assert.Equal(t, 3, auto.MaxRetries)
	assert.Equal(t, 4, auto.Workers)
}

func TestAutomationOverrides(t *testing.T) {
	t.Setenv("INTEREST_RATE", "0.05")
	t.Setenv("MEETING_WEEKDAY", "Saturday")
	t.Setenv("INACTIVITY_THRESHOLD_DAYS", "30")

	auto, err := loadAutomationConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.05, auto.InterestRate, 0.0001)
	assert.Equal(t, time.Saturday, auto.MeetingWeekday)
	assert.Equal(t, 30, auto.InactivityThresholdDays)
}

func TestInvalidTimezoneRejected(t *testing.T) {
	t.Setenv("SCHEDULE_TIMEZONE", "Mars/Olympus")

	_, err := loadAutomationConfig()
	assert.Error(t, err)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	auto := AutomationConfig{Timezone: "not-a-zone"}
	assert.Equal(t, time.UTC, auto.Location())
}
