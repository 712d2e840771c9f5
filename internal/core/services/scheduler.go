package services

import (
	"context"
	"log"
	"sync"
	"time"

	"saccotrack/internal/config"
	"saccotrack/internal/core/domain"

	"github.com/robfig/cron/v3"
)

// RuleGroup names a schedule tier of the rule engine
type RuleGroup string

const (
	GroupDaily   RuleGroup = "daily"
	GroupWeekly  RuleGroup = "weekly"
	GroupMonthly RuleGroup = "monthly"
)

// GroupStatus reports scheduling state for one rule group
type GroupStatus struct {
	LastRun *time.Time `json:"last_run"`
	NextRun *time.Time `json:"next_run"`
	Running bool       `json:"running"`
}

type groupRunner func(ctx context.Context, asOf time.Time) ([]RuleResult, error)

type groupState struct {
	spec    string
	runner  groupRunner
	entryID cron.EntryID

	// runMu is the mutual-exclusion guard shared by scheduled ticks
	// and manual triggers; the second caller is rejected
	runMu sync.Mutex

	mu          sync.Mutex // guards the fields below
	running     bool
	lastRun     *time.Time
	lastResults []RuleResult
}

// Scheduler drives the rule engine at fixed wall-clock times in one
// configured timezone and exposes the manual-trigger entry points.
// There is exactly one Scheduler instance per process, owned by main;
// no ambient singletons.
type Scheduler struct {
	engine *RuleEngine
	cfg    config.AutomationConfig
	cron   *cron.Cron
	groups map[RuleGroup]*groupState
}

// NewScheduler creates a stopped scheduler wired to the engine
func NewScheduler(engine *RuleEngine, cfg config.AutomationConfig) *Scheduler {
	s := &Scheduler{
		engine: engine,
		cfg:    cfg,
		cron:   cron.New(cron.WithLocation(cfg.Location())),
	}
	s.groups = map[RuleGroup]*groupState{
		GroupDaily:   {spec: cfg.DailyCron, runner: engine.RunDailyGroup},
		GroupWeekly:  {spec: cfg.WeeklyCron, runner: engine.RunWeeklyGroup},
		GroupMonthly: {spec: cfg.MonthlyCron, runner: engine.RunMonthlyGroup},
	}
	return s
}

// Start registers the cron entries and begins firing
func (s *Scheduler) Start() error {
	for group, st := range s.groups {
		group, st := group, st
		entryID, err := s.cron.AddFunc(st.spec, func() {
			if _, err := s.runGroup(context.Background(), group); err != nil {
				if err == domain.ErrRunInProgress {
					log.Printf("⏭️ %s tick skipped: previous run still in progress", group)
				} else {
					log.Printf("❌ %s scheduled run failed: %v", group, err)
				}
			}
		})
		if err != nil {
			return err
		}
		st.entryID = entryID
	}

	s.cron.Start()
	log.Printf("🚀 Automation scheduler started [tz=%s daily=%q weekly=%q monthly=%q]",
		s.cfg.Timezone, s.cfg.DailyCron, s.cfg.WeeklyCron, s.cfg.MonthlyCron)
	return nil
}

// Stop halts scheduling; a batch already running finishes its current
// entities
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Automation scheduler stopped")
}

// TriggerDaily manually runs the daily rule group under the same
// mutual exclusion as a scheduled tick
func (s *Scheduler) TriggerDaily(ctx context.Context) ([]RuleResult, error) {
	return s.runGroup(ctx, GroupDaily)
}

// TriggerWeekly manually runs the weekly rule group
func (s *Scheduler) TriggerWeekly(ctx context.Context) ([]RuleResult, error) {
	return s.runGroup(ctx, GroupWeekly)
}

// TriggerMonthly manually runs the monthly rule group
func (s *Scheduler) TriggerMonthly(ctx context.Context) ([]RuleResult, error) {
	return s.runGroup(ctx, GroupMonthly)
}

func (s *Scheduler) runGroup(ctx context.Context, group RuleGroup) ([]RuleResult, error) {
	st := s.groups[group]

	if !st.runMu.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	defer st.runMu.Unlock()

	st.mu.Lock()
	st.running = true
	st.mu.Unlock()

	asOf := time.Now().In(s.cfg.Location())
	results, err := st.runner(ctx, asOf)

	st.mu.Lock()
	st.running = false
	if err == nil {
		completed := time.Now().In(s.cfg.Location())
		st.lastRun = &completed
		st.lastResults = results
	}
	st.mu.Unlock()

	return results, err
}

// Status reports last completed and next scheduled run per rule group.
// Before the first tick, next-run times come straight from the cron
// spec evaluated against the current time.
func (s *Scheduler) Status() map[RuleGroup]GroupStatus {
	out := make(map[RuleGroup]GroupStatus, len(s.groups))
	for group, st := range s.groups {
		st.mu.Lock()
		status := GroupStatus{Running: st.running}
		if st.lastRun != nil {
			t := *st.lastRun
			status.LastRun = &t
		}
		st.mu.Unlock()

		if next := s.nextRun(st); !next.IsZero() {
			status.NextRun = &next
		}
		out[group] = status
	}
	return out
}

// LastResults returns the outcome report of the group's most recent
// completed run, or nil when it has never run
func (s *Scheduler) LastResults(group RuleGroup) []RuleResult {
	st, ok := s.groups[group]
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastResults
}

func (s *Scheduler) nextRun(st *groupState) time.Time {
	if entry := s.cron.Entry(st.entryID); entry.ID == st.entryID && !entry.Next.IsZero() {
		return entry.Next
	}
	// Not started yet: compute from the spec directly
	sched, err := cron.ParseStandard(st.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now().In(s.cfg.Location()))
}
