package services

import (
	"context"
	"testing"
	"time"

	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateStore blocks Ping until released, pinning a rule group run open
// so concurrent triggers can be exercised deterministically
type gateStore struct {
	repositories.LedgerStore
	entered chan struct{}
	release chan struct{}
}

func newGateStore() *gateStore {
	return &gateStore{
		LedgerStore: repositories.NewMemoryStore(nil),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gateStore) Ping(ctx context.Context) error {
	g.entered <- struct{}{}
	<-g.release
	return g.LedgerStore.Ping(ctx)
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	store := newGateStore()
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.TriggerDaily(context.Background())
		done <- err
	}()

	// First trigger is inside the run and holding the group lock
	<-store.entered

	_, err := scheduler.TriggerDaily(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(store.release)
	require.NoError(t, <-done)

	// With the first run finished the group accepts triggers again
	_, err = scheduler.TriggerDaily(context.Background())
	assert.NoError(t, err)
}

func TestGroupsRunIndependently(t *testing.T) {
	store := newGateStore()
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.TriggerDaily(context.Background())
		done <- err
	}()
	<-store.entered

	// A busy daily group does not block the weekly group
	weeklyDone := make(chan error, 1)
	go func() {
		_, err := scheduler.TriggerWeekly(context.Background())
		weeklyDone <- err
	}()
	<-store.entered

	close(store.release)
	require.NoError(t, <-done)
	require.NoError(t, <-weeklyDone)
}

func TestStatusBeforeAndAfterRun(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	status := scheduler.Status()
	require.Len(t, status, 3)
	for group, st := range status {
		assert.Nil(t, st.LastRun, "group %s should not have run yet", group)
		assert.False(t, st.Running)
		// Next-run times come from the cron specs even before Start
		require.NotNil(t, st.NextRun, "group %s next run", group)
		assert.True(t, st.NextRun.After(time.Now().Add(-time.Minute)))
	}

	_, err := scheduler.TriggerDaily(context.Background())
	require.NoError(t, err)

	status = scheduler.Status()
	require.NotNil(t, status[GroupDaily].LastRun)
	assert.Nil(t, status[GroupWeekly].LastRun)
}

func TestLastResultsAfterRun(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	assert.Nil(t, scheduler.LastResults(GroupDaily))

	_, err := scheduler.TriggerDaily(context.Background())
	require.NoError(t, err)

	results := scheduler.LastResults(GroupDaily)
	require.Len(t, results, 3)
	assert.Equal(t, RuleOverdueDetection, results[0].Rule)
	assert.Equal(t, RuleInactivity, results[1].Rule)
	assert.Equal(t, RuleMissedSavings, results[2].Rule)
}

func TestTriggerMonthlyProducesReportResult(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	results, err := scheduler.TriggerMonthly(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, RuleMonthlyReport, results[0].Rule)

	status := scheduler.Status()
	require.NotNil(t, status[GroupMonthly].LastRun)
}

func TestStartStop(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	cfg := testAutomationConfig()
	scheduler := NewScheduler(NewRuleEngine(store, nil, cfg), cfg)

	require.NoError(t, scheduler.Start())

	status := scheduler.Status()
	for group, st := range status {
		require.NotNil(t, st.NextRun, "group %s next run after start", group)
	}

	scheduler.Stop()
}
