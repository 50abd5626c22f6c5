package models

import (
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment mirrors the gateway-side record for an order. The engine only
// tracks the last observed status; gateway calls live outside this core.
type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	OrderID  uuid.UUID           `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Status   types.PaymentStatus `gorm:"default:'pending'" json:"status,omitempty"`
	Amount   decimal.Decimal     `gorm:"type:decimal(12,2)" json:"amount"`
	Currency string              `json:"currency,omitempty"`

	Order Order `json:"order,omitempty"`

	types.Timestamps
}

// PaymentEvent is the append-only audit trail of status signals. Rows
// are never updated or deleted.
type PaymentEvent struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	OrderID   uuid.UUID           `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Status    types.PaymentStatus `json:"status,omitempty"`
	Payload   types.JSONB         `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time           `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
}
