package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Ledger Tables
// ============================================================

// Member represents members table
type Member struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	FullName       string         `gorm:"size:100;not null" json:"full_name"`
	Phone          string         `gorm:"uniqueIndex;size:20;not null" json:"phone"`
	Email          string         `gorm:"size:100" json:"email"`
	Role           string         `gorm:"size:20;default:'MEMBER'" json:"role"`
	Status         string         `gorm:"size:20;default:'PENDING';index" json:"status"`
	IsActive       bool           `gorm:"default:true;index" json:"is_active"`
	LastActivityAt time.Time      `gorm:"index" json:"last_activity_at"`
	TotalSavings   float64        `gorm:"type:decimal(12,2);default:0" json:"total_savings"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Member) TableName() string {
	return "members"
}

// MemberResponse DTO
type MemberResponse struct {
	ID             uint      `json:"id"`
	FullName       string    `json:"full_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	IsActive       bool      `json:"is_active"`
	LastActivityAt time.Time `json:"last_activity_at"`
	TotalSavings   float64   `json:"total_savings"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Member) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:             m.ID,
		FullName:       m.FullName,
		Phone:          m.Phone,
		Email:          m.Email,
		Role:           m.Role,
		Status:         m.Status,
		IsActive:       m.IsActive,
		LastActivityAt: m.LastActivityAt,
		TotalSavings:   m.TotalSavings,
		CreatedAt:      m.CreatedAt,
	}
}

// Loan represents loans table
type Loan struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	MemberID        uint           `gorm:"index;not null" json:"member_id"`
	PrincipalAmount float64        `gorm:"type:decimal(12,2);not null" json:"principal_amount"`
	CurrentAmount   float64        `gorm:"type:decimal(12,2);not null" json:"current_amount"`
	InterestAccrued float64        `gorm:"type:decimal(12,2);default:0" json:"interest_accrued"`
	PenaltyAccrued  float64        `gorm:"type:decimal(12,2);default:0" json:"penalty_accrued"`
	Status          string         `gorm:"size:20;default:'PENDING';index" json:"status"`
	DueDate         *time.Time     `gorm:"index" json:"due_date"`
	IsOverdue       bool           `gorm:"default:false;index" json:"is_overdue"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Member          Member         `gorm:"foreignKey:MemberID" json:"-"`
}

func (Loan) TableName() string {
	return "loans"
}

// Saving represents savings table (append-only)
type Saving struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemberID  uint      `gorm:"index;not null" json:"member_id"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	Member    Member    `gorm:"foreignKey:MemberID" json:"-"`
}

func (Saving) TableName() string {
	return "savings"
}

// Fine represents fines table (append-only; only paid flips)
type Fine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemberID  uint      `gorm:"index;not null" json:"member_id"`
	LoanID    *uint     `gorm:"index" json:"loan_id,omitempty"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reason    string    `gorm:"size:255" json:"reason"`
	Type      string    `gorm:"size:30;not null;index" json:"type"`
	Paid      bool      `gorm:"default:false;index" json:"paid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Member    Member    `gorm:"foreignKey:MemberID" json:"-"`
}

func (Fine) TableName() string {
	return "fines"
}

// ============================================================
// Automation Tables
// ============================================================

// AutomationLog represents automation_logs table. The unique
// (action_type, idem_key) pair is the idempotency witness for every
// automated side effect.
type AutomationLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MemberID    *uint     `gorm:"index" json:"member_id,omitempty"`
	ActionType  string    `gorm:"size:40;not null;uniqueIndex:idx_action_key,priority:1" json:"action_type"`
	IdemKey     string    `gorm:"size:80;not null;uniqueIndex:idx_action_key,priority:2" json:"idem_key"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AutomationLog) TableName() string {
	return "automation_logs"
}

// MonthlyReport represents monthly_reports table, one snapshot per
// calendar month
type MonthlyReport struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Month            string    `gorm:"size:7;uniqueIndex;not null" json:"month"` // "2006-01"
	TotalSavings     float64   `gorm:"type:decimal(12,2);default:0" json:"total_savings"`
	TotalLoansIssued float64   `gorm:"type:decimal(12,2);default:0" json:"total_loans_issued"`
	TotalFinesIssued float64   `gorm:"type:decimal(12,2);default:0" json:"total_fines_issued"`
	TotalFinesPaid   float64   `gorm:"type:decimal(12,2);default:0" json:"total_fines_paid"`
	ActiveMembers    int64     `json:"active_members"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MonthlyReport) TableName() string {
	return "monthly_reports"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all ledger and automation tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&Loan{},
		&Saving{},
		&Fine{},
		&AutomationLog{},
		&MonthlyReport{},
	)
}
