package models

import (
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payout aggregates a set of seller earnings via SellerEarning.PayoutID.
// Metadata carries opaque settlement detail such as the applied f/x rate.
type Payout struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	SellerUserID   uint               `gorm:"index" json:"seller_user_id,omitempty"`
	PayoutMethodID uint               `json:"payout_method_id,omitempty"`
	Status         types.PayoutStatus `gorm:"default:'pending'" json:"status,omitempty"`
	Amount         decimal.Decimal    `gorm:"type:decimal(12,2)" json:"amount"`
	Currency       string             `json:"currency,omitempty"`
	ProcessingAt   *time.Time         `json:"processing_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	FailedAt       *time.Time         `json:"failed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	Metadata       types.JSONB        `gorm:"type:jsonb" json:"metadata,omitempty"`

	Method   PayoutMethod    `gorm:"foreignKey:payout_method_id" json:"method,omitempty"`
	Earnings []SellerEarning `gorm:"foreignKey:payout_id" json:"earnings,omitempty"`

	types.Timestamps
}

type PayoutMethod struct {
	ID           uint                       `gorm:"primarykey" json:"id"`
	SellerUserID uint                       `gorm:"index" json:"seller_user_id,omitempty"`
	Type         types.PayoutMethodType     `json:"type,omitempty"`
	Currency     string                     `json:"currency,omitempty"`
	IsDefault    bool                       `json:"is_default,omitempty"`
	Metadata     types.PayoutMethodMetadata `gorm:"type:jsonb" json:"metadata"`

	types.Timestamps
}
