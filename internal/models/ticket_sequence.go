package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketSequence holds the per-(business type, day) counters. TotalIssued
// counts tickets handed to customers, TotalPassed counts tickets called at a
// counter. Exactly one row per (business_type_id, date); the row is created
// lazily on the first issuance or call of the day.
type TicketSequence struct {
	bun.BaseModel `bun:"table:ticket_sequences"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	BusinessTypeID int64     `bun:"business_type_id,notnull" json:"business_type_id"`
	BusinessCode   string    `bun:"business_code" json:"business_code"`
	Date           string    `bun:"date,notnull" json:"date"` // local calendar date, YYYY-MM-DD
	TotalIssued    int       `bun:"total_issued,notnull,default:0" json:"total_issued"`
	TotalPassed    int       `bun:"total_passed,notnull,default:0" json:"total_passed"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
