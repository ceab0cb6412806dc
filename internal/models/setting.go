package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is a key/value configuration entry owned by the admin panel.
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key         string    `bun:"key,pk" json:"key"`
	Value       string    `bun:"value" json:"value"`
	Description string    `bun:"description" json:"description"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Well-known setting keys.
const (
	SettingAdminPassword   = "admin_password"
	SettingTicketResetTime = "ticket_reset_time"
	SettingVoiceVolume     = "voice_volume"
	SettingVoiceRate       = "voice_rate"
	SettingSiteTitle       = "site_title"
)
