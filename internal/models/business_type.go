package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BusinessType is a category of service with its own daily ticket sequence.
// Code is the single-character call-number prefix; Prefix is the (possibly
// longer) issued-ticket prefix. The two numbering schemes are intentionally
// different: the printed stub uses Prefix, the "now serving" display uses Code.
type BusinessType struct {
	bun.BaseModel `bun:"table:business_types"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	NameEn    string    `bun:"name_en" json:"name_en"`
	Code      string    `bun:"code,notnull,unique" json:"code"`
	Prefix    string    `bun:"prefix,notnull" json:"prefix"`
	Status    string    `bun:"status,default:'active'" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

const (
	BusinessTypeActive   = "active"
	BusinessTypeInactive = "inactive"
)
