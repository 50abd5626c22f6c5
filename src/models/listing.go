package models

import (
	"revendiste/src/types"
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a seller's published batch of tickets for one event.
type Listing struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	SellerUserID uint   `gorm:"index" json:"seller_user_id,omitempty"`
	EventID      uint   `json:"event_id,omitempty"`
	Title        string `json:"title,omitempty"`

	Event   Event           `json:"event,omitempty"`
	Tickets []ListingTicket `gorm:"foreignKey:listing_id" json:"tickets,omitempty"`

	types.Timestamps
}

// ListingTicket is one sellable unit. A ticket with SoldAt set is
// permanently out of the sellable pool.
type ListingTicket struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	ListingID    uint            `gorm:"index" json:"listing_id,omitempty"`
	TicketWaveID uint            `gorm:"index" json:"ticket_wave_id,omitempty"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Currency     string          `json:"currency,omitempty"`
	SoldAt       *time.Time      `json:"sold_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`

	Listing Listing    `json:"listing,omitempty"`
	Wave    TicketWave `gorm:"foreignKey:ticket_wave_id" json:"wave,omitempty"`

	types.Timestamps
}

// Sellable reports whether the ticket can still enter a reservation.
func (t *ListingTicket) Sellable() bool {
	return t.SoldAt == nil && t.CancelledAt == nil
}
