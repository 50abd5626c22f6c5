package models

import (
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	UserID               uint              `gorm:"index" json:"user_id,omitempty"`
	EventID              uint              `json:"event_id,omitempty"`
	Status               types.OrderStatus `gorm:"default:'pending'" json:"status,omitempty"`
	SubtotalAmount       decimal.Decimal   `gorm:"type:decimal(12,2)" json:"subtotal_amount"`
	PlatformCommission   decimal.Decimal   `gorm:"type:decimal(12,2)" json:"platform_commission"`
	VatOnCommission      decimal.Decimal   `gorm:"type:decimal(12,2)" json:"vat_on_commission"`
	TotalAmount          decimal.Decimal   `gorm:"type:decimal(12,2)" json:"total_amount"`
	Currency             string            `json:"currency,omitempty"`
	ReservationExpiresAt time.Time         `json:"reservation_expires_at,omitempty"`
	ConfirmedAt          *time.Time        `json:"confirmed_at,omitempty"`

	Event        Event                    `json:"event,omitempty"`
	Items        []OrderItem              `gorm:"foreignKey:order_id" json:"items,omitempty"`
	Reservations []OrderTicketReservation `gorm:"foreignKey:order_id" json:"reservations,omitempty"`

	types.Timestamps
}

// OrderItem is a denormalized line item, one per (wave, price) group in
// the order. Immutable once created.
type OrderItem struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	OrderID        uuid.UUID       `gorm:"type:uuid;index" json:"order_id,omitempty"`
	TicketWaveID   uint            `json:"ticket_wave_id,omitempty"`
	PricePerTicket decimal.Decimal `gorm:"type:decimal(12,2)" json:"price_per_ticket"`
	Quantity       uint            `json:"quantity,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`

	Wave TicketWave `gorm:"foreignKey:ticket_wave_id" json:"wave,omitempty"`

	types.Timestamps
}

// OrderTicketReservation is a time-boxed exclusive claim on one ticket.
// The partial unique index is the row-level guard against oversell: at
// most one non-deleted reservation may reference a ticket, and stale
// rows are soft-deleted before any insert that touches their ticket.
type OrderTicketReservation struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	OrderID         uuid.UUID `gorm:"type:uuid;index" json:"order_id,omitempty"`
	ListingTicketID uint      `gorm:"uniqueIndex:idx_live_ticket_reservation,where:deleted_at IS NULL" json:"listing_ticket_id,omitempty"`
	ReservedAt      time.Time `json:"reserved_at,omitempty"`
	ReservedUntil   time.Time `json:"reserved_until,omitempty"`

	Ticket ListingTicket `gorm:"foreignKey:listing_ticket_id" json:"ticket,omitempty"`
	Order  Order         `json:"order,omitempty"`

	types.Timestamps
}

// Active reports whether the reservation still excludes other buyers.
func (r *OrderTicketReservation) Active(now time.Time) bool {
	return !r.DeletedAt.Valid && r.ReservedUntil.After(now)
}
