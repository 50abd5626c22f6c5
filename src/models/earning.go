package models

import (
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellerEarning is the per-ticket settlement record. Exactly one active
// (non failed_payout) earning exists per sold ticket; failed_payout
// rows are immutable audit records superseded by their clone.
type SellerEarning struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	SellerUserID    uint                `gorm:"index" json:"seller_user_id,omitempty"`
	ListingTicketID uint                `gorm:"index" json:"listing_ticket_id,omitempty"`
	OrderID         uuid.UUID           `gorm:"type:uuid" json:"order_id,omitempty"`
	SellerAmount    decimal.Decimal     `gorm:"type:decimal(12,2)" json:"seller_amount"`
	Currency        string              `json:"currency,omitempty"`
	HoldUntil       time.Time           `json:"hold_until,omitempty"`
	Status          types.EarningStatus `gorm:"default:'pending';index" json:"status,omitempty"`
	PayoutID        *uuid.UUID          `gorm:"type:uuid;index" json:"payout_id,omitempty"`

	Ticket ListingTicket `gorm:"foreignKey:listing_ticket_id" json:"ticket,omitempty"`
	Payout *Payout       `json:"payout,omitempty"`

	types.Timestamps
}

// SellerBalance is the aggregated view returned by balance queries,
// one row per (seller, currency).
type SellerBalance struct {
	SellerUserID uint            `json:"seller_user_id"`
	Currency     string          `json:"currency"`
	Pending      decimal.Decimal `json:"pending"`
	Available    decimal.Decimal `json:"available"`
	Retained     decimal.Decimal `json:"retained"`
	PaidOut      decimal.Decimal `json:"paid_out"`
	Total        decimal.Decimal `json:"total"`
}
