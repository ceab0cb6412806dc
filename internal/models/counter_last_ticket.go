package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CounterLastTicket records the last ticket number a counter called for a
// business type, so a counter terminal can restore "you last called X" after
// a reconnect. Rows are never deleted; the daily reset only clears the value.
type CounterLastTicket struct {
	bun.BaseModel `bun:"table:counter_business_last_ticket"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	CounterID      int64     `bun:"counter_id,notnull" json:"counter_id"`
	BusinessTypeID int64     `bun:"business_type_id,notnull" json:"business_type_id"`
	LastTicketNo   *string   `bun:"last_ticket_no" json:"last_ticket_no"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
