package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type OrderStatus string

const (
	ORDER_PENDING   OrderStatus = "pending"
	ORDER_CONFIRMED OrderStatus = "confirmed"
	ORDER_CANCELLED OrderStatus = "cancelled"
	ORDER_EXPIRED   OrderStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == ORDER_CONFIRMED || s == ORDER_CANCELLED || s == ORDER_EXPIRED
}

type EarningStatus string

const (
	EARNING_PENDING       EarningStatus = "pending"
	EARNING_AVAILABLE     EarningStatus = "available"
	EARNING_RETAINED      EarningStatus = "retained"
	EARNING_PAID_OUT      EarningStatus = "paid_out"
	EARNING_FAILED_PAYOUT EarningStatus = "failed_payout"
)

type PayoutStatus string

const (
	PAYOUT_PENDING    PayoutStatus = "pending"
	PAYOUT_PROCESSING PayoutStatus = "processing"
	PAYOUT_COMPLETED  PayoutStatus = "completed"
	PAYOUT_FAILED     PayoutStatus = "failed"
	PAYOUT_CANCELLED  PayoutStatus = "cancelled"
)

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_PAID      PaymentStatus = "paid"
	PAYMENT_FAILED    PaymentStatus = "failed"
	PAYMENT_CANCELLED PaymentStatus = "cancelled"
	PAYMENT_EXPIRED   PaymentStatus = "expired"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_FINISHED  EventStatus = "finished"
	EVENT_CANCELLED EventStatus = "cancelled"
)

type PayoutMethodType string

const (
	PAYOUT_METHOD_BANK_ACCOUNT PayoutMethodType = "bank_account"
	PAYOUT_METHOD_PAYPAL       PayoutMethodType = "paypal"
)

// CreateOrderRequestBody selects tickets by wave and price group. The
// price keys are decimal strings ("1500.00") naming the price group
// inside the wave.
type CreateOrderRequestBody struct {
	EventID    uint                     `json:"event_id" binding:"required"`
	Selections map[uint]map[string]uint `json:"selections" binding:"required"`
}

type RequestPayoutRequestBody struct {
	PayoutMethodID   uint   `json:"payout_method_id" binding:"required"`
	ListingTicketIDs []uint `json:"listing_ticket_ids,omitempty"`
	ListingIDs       []uint `json:"listing_ids,omitempty"`
}

type CreatePayoutMethodRequestBody struct {
	Type      PayoutMethodType     `json:"type" binding:"required,oneof=bank_account paypal"`
	Currency  string               `json:"currency" binding:"required,len=3"`
	IsDefault bool                 `json:"is_default,omitempty"`
	Metadata  PayoutMethodMetadata `json:"metadata" binding:"required"`
}

type PaymentStatusChangedBody struct {
	OrderID string        `json:"order_id" binding:"required,uuid"`
	Status  PaymentStatus `json:"status" binding:"required"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type UUIDRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}
