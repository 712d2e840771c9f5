package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/core/domain"
	"saccotrack/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMember(t *testing.T, store *MemoryStore) *models.Member {
	t.Helper()
	member := &models.Member{
		FullName:       "Jane Wanjiku",
		Phone:          "0700000001",
		Status:         domain.MemberApproved,
		IsActive:       true,
		LastActivityAt: time.Now(),
	}
	require.NoError(t, store.CreateMember(context.Background(), member))
	return member
}

func TestAuditLogIdempotencyWitness(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	exists, err := store.LogEntryExists(ctx, domain.ActionWeeklyInterest, "1:2025-W11")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.AppendAuditLog(ctx, &models.AutomationLog{
		ActionType: domain.ActionWeeklyInterest,
		IdemKey:    "1:2025-W11",
	}))

	exists, err = store.LogEntryExists(ctx, domain.ActionWeeklyInterest, "1:2025-W11")
	require.NoError(t, err)
	assert.True(t, exists)

	// The (action, key) pair is unique
	err = store.AppendAuditLog(ctx, &models.AutomationLog{
		ActionType: domain.ActionWeeklyInterest,
		IdemKey:    "1:2025-W11",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	// Same key under a different action is a distinct witness
	require.NoError(t, store.AppendAuditLog(ctx, &models.AutomationLog{
		ActionType: domain.ActionWeeklyPenalty,
		IdemKey:    "1:2025-W11",
	}))
}

func TestMarkFinePaidFlipsOnce(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	member := newMember(t, store)
	fine := &models.Fine{MemberID: member.ID, Amount: 50, Type: domain.FineManual}
	require.NoError(t, store.AppendFine(ctx, fine))

	require.NoError(t, store.MarkFinePaid(ctx, fine.ID))
	assert.ErrorIs(t, store.MarkFinePaid(ctx, fine.ID), domain.ErrFineAlreadyPaid)
	assert.ErrorIs(t, store.MarkFinePaid(ctx, 999), domain.ErrNotFound)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	member := newMember(t, store)
	boom := errors.New("boom")

	err := store.Atomic(ctx, MemberKey(member.ID), func(tx LedgerStore) error {
		m, err := tx.GetMember(ctx, member.ID)
		if err != nil {
			return err
		}
		m.TotalSavings = 9999
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		if err := tx.AppendFine(ctx, &models.Fine{MemberID: m.ID, Amount: 50, Type: domain.FineManual}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.TotalSavings, 0.001)

	_, total, err := store.ListFines(ctx, member.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	member := newMember(t, store)

	err := store.Atomic(ctx, MemberKey(member.ID), func(tx LedgerStore) error {
		m, err := tx.GetMember(ctx, member.ID)
		if err != nil {
			return err
		}
		m.TotalSavings = 250
		return tx.UpdateMember(ctx, m)
	})
	require.NoError(t, err)

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.InDelta(t, 250, got.TotalSavings, 0.001)
}

func TestAtomicRespectsCancelledContext(t *testing.T) {
	store := NewMemoryStore(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Atomic(ctx, "loan:1", func(tx LedgerStore) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCopyOnReadIsolation(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	member := newMember(t, store)

	read, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	read.TotalSavings = 777

	// Mutating the returned copy does not reach the store
	fresh, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, fresh.TotalSavings, 0.001)
}

func TestInsertEventsPublished(t *testing.T) {
	bus := events.NewBus(8)
	store := NewMemoryStore(bus)
	sub := bus.Subscribe()
	defer sub.Cancel()
	ctx := context.Background()

	member := newMember(t, store)

	ev := <-sub.C
	assert.Equal(t, events.EntityMember, ev.Type)
	assert.Equal(t, events.OpInsert, ev.Op)
	assert.Equal(t, member.ID, ev.EntityID)

	loan := &models.Loan{MemberID: member.ID, PrincipalAmount: 1000, CurrentAmount: 1000, Status: domain.LoanPending}
	require.NoError(t, store.CreateLoan(ctx, loan))

	ev = <-sub.C
	assert.Equal(t, events.EntityLoan, ev.Type)
	assert.Equal(t, loan.ID, ev.EntityID)
	assert.Equal(t, member.ID, ev.MemberID)

	saving := &models.Saving{MemberID: member.ID, Amount: 100}
	require.NoError(t, store.CreateSaving(ctx, saving))

	ev = <-sub.C
	assert.Equal(t, events.EntitySaving, ev.Type)
	assert.Equal(t, saving.ID, ev.EntityID)
}

func TestAtomicPublishesEventsOnlyOnCommit(t *testing.T) {
	bus := events.NewBus(8)
	store := NewMemoryStore(bus)
	sub := bus.Subscribe()
	defer sub.Cancel()
	ctx := context.Background()

	member := newMember(t, store)
	<-sub.C // member insert

	// A rolled-back section must not leak its insert event
	boom := errors.New("boom")
	err := store.Atomic(ctx, MemberKey(member.ID), func(tx LedgerStore) error {
		if err := tx.CreateSaving(ctx, &models.Saving{MemberID: member.ID, Amount: 100}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	committed := &models.Saving{MemberID: member.ID, Amount: 200}
	require.NoError(t, store.Atomic(ctx, MemberKey(member.ID), func(tx LedgerStore) error {
		return tx.CreateSaving(ctx, committed)
	}))

	// The first event after the rollback is the committed saving; the
	// discarded one never reached the bus
	ev := <-sub.C
	assert.Equal(t, events.EntitySaving, ev.Type)
	assert.Equal(t, committed.ID, ev.EntityID)
}

func TestFindLastSaving(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	member := newMember(t, store)

	last, err := store.FindLastSaving(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	early := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateSaving(ctx, &models.Saving{MemberID: member.ID, Amount: 100, CreatedAt: late}))
	require.NoError(t, store.CreateSaving(ctx, &models.Saving{MemberID: member.ID, Amount: 200, CreatedAt: early}))

	last, err = store.FindLastSaving(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.CreatedAt.Equal(late))
	assert.InDelta(t, 100, last.Amount, 0.001)
}

func TestOverdueCandidateSelection(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	member := newMember(t, store)
	asOf := time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)

	past := asOf.AddDate(0, 0, -1)
	future := asOf.AddDate(0, 0, 5)

	candidate := &models.Loan{MemberID: member.ID, PrincipalAmount: 1000, CurrentAmount: 1000, Status: domain.LoanApproved, DueDate: &past}
	require.NoError(t, store.CreateLoan(ctx, candidate))
	// Already flagged, not yet due, and pending loans are all excluded
	require.NoError(t, store.CreateLoan(ctx, &models.Loan{MemberID: member.ID, PrincipalAmount: 1000, CurrentAmount: 1000, Status: domain.LoanApproved, DueDate: &past, IsOverdue: true}))
	require.NoError(t, store.CreateLoan(ctx, &models.Loan{MemberID: member.ID, PrincipalAmount: 1000, CurrentAmount: 1000, Status: domain.LoanApproved, DueDate: &future}))
	require.NoError(t, store.CreateLoan(ctx, &models.Loan{MemberID: member.ID, PrincipalAmount: 1000, CurrentAmount: 1000, Status: domain.LoanPending, DueDate: &past}))

	loans, err := store.FindOverdueCandidateLoans(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, candidate.ID, loans[0].ID)
}

func TestInactiveCandidateSelection(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	asOf := time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)

	stale := &models.Member{FullName: "A", Phone: "1", Status: domain.MemberApproved, IsActive: true, LastActivityAt: asOf.AddDate(0, 0, -120)}
	fresh := &models.Member{FullName: "B", Phone: "2", Status: domain.MemberApproved, IsActive: true, LastActivityAt: asOf.AddDate(0, 0, -10)}
	inactive := &models.Member{FullName: "C", Phone: "3", Status: domain.MemberApproved, IsActive: false, LastActivityAt: asOf.AddDate(0, 0, -200)}
	for _, m := range []*models.Member{stale, fresh, inactive} {
		require.NoError(t, store.CreateMember(ctx, m))
	}

	members, err := store.FindInactiveCandidateMembers(ctx, asOf, 90)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, stale.ID, members[0].ID)
}

func TestMonthlyReportUniquePerMonth(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, store.SaveMonthlyReport(ctx, &models.MonthlyReport{Month: "2025-02", TotalSavings: 100}))
	err := store.SaveMonthlyReport(ctx, &models.MonthlyReport{Month: "2025-02"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
}

func TestListPagination(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	member := newMember(t, store)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendFine(ctx, &models.Fine{MemberID: member.ID, Amount: float64(i + 1), Type: domain.FineManual}))
	}

	page, total, err := store.ListFines(ctx, member.ID, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	rest, _, err := store.ListFines(ctx, member.ID, 4, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	all, _, err := store.ListFines(ctx, member.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
