package domain

// Role represents a member role in the group
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleTreasurer Role = "TREASURER"
	RoleAdmin     Role = "ADMIN"
)

// Member status values
const (
	MemberPending  = "PENDING"
	MemberApproved = "APPROVED"
	MemberRejected = "REJECTED"
)

// Loan status values
const (
	LoanPending  = "PENDING"
	LoanApproved = "APPROVED"
	LoanPaid     = "PAID"
	LoanRejected = "REJECTED"
)

// Fine types
const (
	FineAutoPenalty      = "auto-penalty"
	FineAutoInactivity   = "auto-inactivity"
	FineAutoMissedSaving = "auto-missed-saving"
	FineManual           = "manual"
)

// Automation action types. Together with a period key they form the
// idempotency witness recorded in the automation log.
const (
	ActionOverdueFlag    = "overdue-flag"
	ActionWeeklyInterest = "weekly-interest"
	ActionWeeklyPenalty  = "weekly-penalty"
	ActionInactivityFlag = "inactivity-flag"
	ActionMissedSaving   = "missed-saving-fine"
	ActionMonthlyReport  = "monthly-report"
	ActionLoanDueDate    = "loan-due-date"
)

// LoanTermDays is the fixed loan term applied at approval or insert
const LoanTermDays = 30
