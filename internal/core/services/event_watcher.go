package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
	"saccotrack/internal/events"
)

// EventWatcher consumes ledger insert events and applies the reactive
// rules immediately, independent of the scheduler. Delivery is
// at-least-once, so every handler is safe to apply more than once for
// the same event; all mutations go through the same per-entity atomic
// scopes as the batch rules.
type EventWatcher struct {
	store      repositories.LedgerStore
	bus        *events.Bus
	sub        *events.Subscription
	done       chan struct{}
	maxRetries int
}

// NewEventWatcher creates a watcher over the given bus and store
func NewEventWatcher(store repositories.LedgerStore, bus *events.Bus) *EventWatcher {
	return &EventWatcher{
		store:      store,
		bus:        bus,
		maxRetries: 3,
	}
}

// Start subscribes and launches the consumer goroutine
func (w *EventWatcher) Start() {
	w.sub = w.bus.Subscribe()
	w.done = make(chan struct{})

	go w.run()
	log.Println("🚀 EventWatcher started")
}

// Stop unsubscribes and waits for the consumer to drain
func (w *EventWatcher) Stop() {
	if w.sub == nil {
		return
	}
	w.sub.Cancel()
	<-w.done
	log.Println("🛑 EventWatcher stopped")
}

func (w *EventWatcher) run() {
	defer close(w.done)

	for ev := range w.sub.C {
		w.Handle(context.Background(), ev)
	}
}

// Handle applies the reactive rule for one event. Exported so tests
// and replay tooling can drive the watcher synchronously.
func (w *EventWatcher) Handle(ctx context.Context, ev events.Event) {
	if ev.Op != events.OpInsert {
		return
	}

	var err error
	switch ev.Type {
	case events.EntityLoan:
		err = w.retry(func() error { return w.handleNewLoan(ctx, ev) })
	case events.EntitySaving:
		err = w.retry(func() error { return w.handleNewSaving(ctx, ev) })
	default:
		return
	}
	if err != nil {
		log.Printf("❌ reactive rule for %s/%d failed: %v", ev.Type, ev.EntityID, err)
	}
}

func (w *EventWatcher) retry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if err = fn(); err == nil || !domain.IsTransient(err) {
			return err
		}
	}
	return err
}

// handleNewLoan assigns the due date exactly once: a duplicate
// delivery of the same insert event finds it already set and does
// nothing. It also counts as member activity.
func (w *EventWatcher) handleNewLoan(ctx context.Context, ev events.Event) error {
	var activityAt time.Time

	err := w.store.Atomic(ctx, repositories.LoanKey(ev.EntityID), func(tx repositories.LedgerStore) error {
		loan, err := tx.GetLoan(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		activityAt = loan.CreatedAt

		if loan.DueDate != nil {
			return nil
		}

		due := loan.CreatedAt.AddDate(0, 0, domain.LoanTermDays)
		loan.DueDate = &due
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		return tx.AppendAuditLog(ctx, &models.AutomationLog{
			MemberID:    &loan.MemberID,
			ActionType:  domain.ActionLoanDueDate,
			IdemKey:     strconv.FormatUint(uint64(loan.ID), 10),
			Description: fmt.Sprintf("loan #%d due date set to %s", loan.ID, due.Format("2006-01-02")),
		})
	})
	if err != nil {
		return err
	}

	return w.touchMemberActivity(ctx, ev.MemberID, activityAt)
}

// handleNewSaving refreshes the owning member's activity
func (w *EventWatcher) handleNewSaving(ctx context.Context, ev events.Event) error {
	var savedAt time.Time

	last, err := w.store.FindLastSaving(ctx, ev.MemberID)
	if err != nil {
		return err
	}
	if last != nil {
		savedAt = last.CreatedAt
	} else {
		savedAt = time.Now()
	}

	return w.touchMemberActivity(ctx, ev.MemberID, savedAt)
}

// touchMemberActivity reactivates the member and moves the activity
// timestamp forward, never backward, which keeps replays harmless
func (w *EventWatcher) touchMemberActivity(ctx context.Context, memberID uint, at time.Time) error {
	if memberID == 0 {
		return nil
	}
	return w.store.Atomic(ctx, repositories.MemberKey(memberID), func(tx repositories.LedgerStore) error {
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}

		changed := false
		if !member.IsActive {
			member.IsActive = true
			changed = true
		}
		if at.After(member.LastActivityAt) {
			member.LastActivityAt = at
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.UpdateMember(ctx, member)
	})
}
