package models

import (
	"revendiste/src/types"
	"time"
)

type Event struct {
	ID       uint              `gorm:"primarykey" json:"id"`
	Name     string            `json:"name,omitempty"`
	Venue    string            `json:"venue,omitempty"`
	StartsAt time.Time         `json:"starts_at,omitempty"`
	EndsAt   time.Time         `json:"ends_at,omitempty"`
	Status   types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`

	Waves []TicketWave `gorm:"foreignKey:event_id" json:"waves,omitempty"`

	types.Timestamps
}

// TicketWave is a named release of tickets for an event ("Early Bird",
// "General"). Listed tickets reference the wave they were issued in.
type TicketWave struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	EventID uint   `json:"event_id,omitempty"`
	Name    string `json:"name,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
