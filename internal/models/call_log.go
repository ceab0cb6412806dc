package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CallLog is an append-only audit record of call-advance events. Writing it
// is best-effort: a failed insert never fails the call itself.
type CallLog struct {
	bun.BaseModel `bun:"table:call_logs"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketNumber   string    `bun:"ticket_number,notnull" json:"ticket_number"`
	CounterID      int64     `bun:"counter_id,notnull" json:"counter_id"`
	BusinessTypeID int64     `bun:"business_type_id,notnull" json:"business_type_id"`
	CallType       string    `bun:"call_type,notnull,default:'next'" json:"call_type"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

const CallTypeNext = "next"
