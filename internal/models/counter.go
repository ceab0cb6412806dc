package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Counter is a physical service window. CurrentTicketNumber is set by the
// call-advance engine and cleared to NULL by the daily reset.
type Counter struct {
	bun.BaseModel `bun:"table:counters"`

	ID                  int64     `bun:"id,pk,autoincrement" json:"id"`
	CounterNumber       int       `bun:"counter_number,notnull,unique" json:"counterNumber"`
	Name                string    `bun:"name" json:"name"`
	IPAddress           *string   `bun:"ip_address" json:"ipAddress"`
	CurrentTicketNumber *string   `bun:"current_ticket_number" json:"currentTicketNumber"`
	CreatedAt           time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt           time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
