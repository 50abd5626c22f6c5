package common

import (
	"errors"
	"log"
	"revendiste/src/db"
	"revendiste/src/models"
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutService groups available earnings into payout batches and
// recovers them when a batch fails or is cancelled.
type PayoutService struct {
	earnings *EarningsService
	emitter  Emitter
}

func NewPayoutService(earnings *EarningsService, emitter Emitter) *PayoutService {
	return &PayoutService{earnings: earnings, emitter: emitter}
}

// RequestPayout settles the seller's selection into a new pending
// payout. The selection may name tickets directly, whole listings, or
// both (union). Linking earnings and marking them paid_out commits
// atomically with the payout row.
func (s *PayoutService) RequestPayout(sellerID uint, body types.RequestPayoutRequestBody) (*models.Payout, error) {
	if len(body.ListingTicketIDs) == 0 && len(body.ListingIDs) == 0 {
		return nil, types.NewValidationError("no tickets or listings selected")
	}
	conn := db.GetDb()
	var payout models.Payout
	err := conn.Transaction(func(tx *gorm.DB) error {
		var method models.PayoutMethod
		if err := tx.
			Where(&models.PayoutMethod{ID: body.PayoutMethodID, SellerUserID: sellerID}).
			First(&method).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrPayoutMethodNotFound
			}
			return err
		}

		ticketIDs := append([]uint{}, body.ListingTicketIDs...)
		if len(body.ListingIDs) > 0 {
			var owned int64
			if err := tx.
				Model(&models.Listing{}).
				Where("id IN ? AND seller_user_id = ?", body.ListingIDs, sellerID).
				Count(&owned).
				Error; err != nil {
				return err
			}
			if owned != int64(len(body.ListingIDs)) {
				return types.NewValidationError("selection references listings that do not belong to the seller")
			}
			var listingTicketIDs []uint
			if err := tx.
				Model(&models.ListingTicket{}).
				Where("listing_id IN ?", body.ListingIDs).
				Pluck("id", &listingTicketIDs).
				Error; err != nil {
				return err
			}
			ticketIDs = append(ticketIDs, listingTicketIDs...)
		}

		var selected []models.SellerEarning
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("seller_user_id = ? AND status = ? AND payout_id IS NULL", sellerID, types.EARNING_AVAILABLE).
			Where("listing_ticket_id IN ?", ticketIDs).
			Find(&selected).
			Error; err != nil {
			return err
		}
		if len(selected) == 0 {
			return types.NewValidationError("selection resolved to no available earnings")
		}

		currency := selected[0].Currency
		amount := decimal.Zero
		earningIDs := make([]uuid.UUID, 0, len(selected))
		for i := range selected {
			if selected[i].Currency != currency {
				return types.NewValidationError("cannot mix %s and %s earnings in one payout", currency, selected[i].Currency)
			}
			amount = amount.Add(selected[i].SellerAmount)
			earningIDs = append(earningIDs, selected[i].ID)
		}

		payout = models.Payout{
			ID:             uuid.New(),
			SellerUserID:   sellerID,
			PayoutMethodID: method.ID,
			Status:         types.PAYOUT_PENDING,
			Amount:         amount,
			Currency:       currency,
		}
		if err := tx.Create(&payout).Error; err != nil {
			return err
		}
		return tx.
			Model(&models.SellerEarning{}).
			Where("id IN ?", earningIDs).
			Updates(map[string]any{
				"payout_id": payout.ID,
				"status":    types.EARNING_PAID_OUT,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}
	s.earnings.InvalidateBalance(sellerID)
	return &payout, nil
}

// MarkProcessing records that the payout was handed to the gateway.
func (s *PayoutService) MarkProcessing(payoutID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.transition(payoutID, nil, types.PAYOUT_PROCESSING, map[string]any{
		"status":        types.PAYOUT_PROCESSING,
		"processing_at": now,
	}, types.PAYOUT_PENDING)
	return err
}

// CompletePayout closes the batch. metadata carries opaque settlement
// detail such as the applied conversion rate.
func (s *PayoutService) CompletePayout(payoutID uuid.UUID, metadata types.JSONB) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       types.PAYOUT_COMPLETED,
		"completed_at": now,
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	payout, err := s.transition(payoutID, nil, types.PAYOUT_COMPLETED, updates, types.PAYOUT_PENDING, types.PAYOUT_PROCESSING)
	if err != nil {
		return err
	}
	s.emitter.Emit(TopicPayoutCompleted, types.JSONB{
		"payout_id":      payoutID.String(),
		"seller_user_id": payout.SellerUserID,
		"amount":         payout.Amount.String(),
		"currency":       payout.Currency,
	})
	return nil
}

// FailPayout marks the batch failed and clones its earnings back into
// the seller's available balance.
func (s *PayoutService) FailPayout(payoutID uuid.UUID) error {
	now := time.Now().UTC()
	payout, err := s.transition(payoutID, nil, types.PAYOUT_FAILED, map[string]any{
		"status":    types.PAYOUT_FAILED,
		"failed_at": now,
	}, types.PAYOUT_PENDING, types.PAYOUT_PROCESSING)
	if err != nil {
		return err
	}
	if err := s.RecoverPayout(payoutID); err != nil {
		return err
	}
	s.emitter.Emit(TopicPayoutFailed, types.JSONB{
		"payout_id":      payoutID.String(),
		"seller_user_id": payout.SellerUserID,
	})
	return nil
}

// CancelPayout is the seller-initiated variant of failure; recovery is
// identical. Ownership is part of the lookup: another seller's payout
// reads as not found.
func (s *PayoutService) CancelPayout(sellerID uint, payoutID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.transition(payoutID, &sellerID, types.PAYOUT_CANCELLED, map[string]any{
		"status":       types.PAYOUT_CANCELLED,
		"cancelled_at": now,
	}, types.PAYOUT_PENDING, types.PAYOUT_PROCESSING)
	if err != nil {
		return err
	}
	return s.RecoverPayout(payoutID)
}

func (s *PayoutService) transition(payoutID uuid.UUID, owner *uint, to types.PayoutStatus, updates map[string]any, from ...types.PayoutStatus) (*models.Payout, error) {
	conn := db.GetDb()
	var payout models.Payout
	err := conn.Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", payoutID)
		if owner != nil {
			query = query.Where("seller_user_id = ?", *owner)
		}
		if err := query.
			First(&payout).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrPayoutNotFound
			}
			return err
		}
		if payout.Status == to {
			return nil
		}
		allowed := false
		for _, status := range from {
			if payout.Status == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return types.NewStateError("cannot move %s payout %s to %s", payout.Status, payoutID, to)
		}
		return tx.
			Model(&models.Payout{}).
			Where("id = ?", payoutID).
			Updates(updates).
			Error
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// RecoverPayout carries the money of a failed or cancelled payout back
// to the seller: each linked earning becomes an immutable failed_payout
// record and a fresh available clone is inserted, unless an identical
// clone already exists. The dedup check makes the whole procedure safe
// to re-run after a retried webhook or a crash mid-recovery. Per-item
// errors are logged and skipped so one bad row cannot halt the batch.
func (s *PayoutService) RecoverPayout(payoutID uuid.UUID) error {
	conn := db.GetDb()
	var payout models.Payout
	if err := conn.
		Where("id = ?", payoutID).
		First(&payout).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrPayoutNotFound
		}
		return err
	}
	if payout.Status != types.PAYOUT_FAILED && payout.Status != types.PAYOUT_CANCELLED {
		return types.NewStateError("cannot recover %s payout %s", payout.Status, payoutID)
	}

	var linked []models.SellerEarning
	if err := conn.
		Where("payout_id = ? AND status IN ?", payoutID,
			[]types.EarningStatus{types.EARNING_PAID_OUT, types.EARNING_FAILED_PAYOUT}).
		Find(&linked).
		Error; err != nil {
		return err
	}

	recovered := 0
	for i := range linked {
		err := conn.Transaction(func(tx *gorm.DB) error {
			// Re-read under FOR UPDATE so concurrent recoveries of the
			// same payout serialize on the original row and exactly one
			// of them passes the clone check.
			var earning models.SellerEarning
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", linked[i].ID).
				First(&earning).
				Error; err != nil {
				return err
			}
			if earning.Status == types.EARNING_PAID_OUT {
				if err := tx.
					Model(&models.SellerEarning{}).
					Where("id = ?", earning.ID).
					Update("status", types.EARNING_FAILED_PAYOUT).
					Error; err != nil {
					return err
				}
			} else if earning.Status != types.EARNING_FAILED_PAYOUT {
				return nil
			}
			var existing models.SellerEarning
			err := tx.
				Where("listing_ticket_id = ? AND seller_user_id = ? AND seller_amount = ? AND status = ? AND payout_id IS NULL",
					earning.ListingTicketID, earning.SellerUserID, earning.SellerAmount, types.EARNING_AVAILABLE).
				First(&existing).
				Error
			if err == nil {
				// Clone already present; nothing to credit.
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			clone := models.SellerEarning{
				ID:              uuid.New(),
				SellerUserID:    earning.SellerUserID,
				ListingTicketID: earning.ListingTicketID,
				OrderID:         earning.OrderID,
				SellerAmount:    earning.SellerAmount,
				Currency:        earning.Currency,
				HoldUntil:       earning.HoldUntil,
				Status:          types.EARNING_AVAILABLE,
			}
			return tx.Create(&clone).Error
		})
		if err != nil {
			log.Printf("[payout-recovery] Error recovering earning %s of payout %s: %s\n", linked[i].ID, payoutID, err.Error())
			continue
		}
		recovered++
	}
	log.Printf("[payout-recovery] Recovered %d of %d earnings for payout %s\n", recovered, len(linked), payoutID)
	s.earnings.InvalidateBalance(payout.SellerUserID)
	return nil
}

// PayoutHistory lists the seller's payouts, newest first.
func (s *PayoutService) PayoutHistory(sellerID uint) ([]models.Payout, error) {
	var payouts []models.Payout
	err := db.GetDb().
		Model(&models.Payout{}).
		Where(&models.Payout{SellerUserID: sellerID}).
		Preload("Method").
		Order("created_at DESC").
		Limit(100).
		Find(&payouts).
		Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

// CreatePayoutMethod registers a destination for the seller. Setting a
// new default first clears the previous one inside the same transaction.
func (s *PayoutService) CreatePayoutMethod(sellerID uint, body types.CreatePayoutMethodRequestBody) (*models.PayoutMethod, error) {
	if body.Metadata.Type != body.Type {
		return nil, types.NewValidationError("metadata type does not match method type")
	}
	if err := body.Metadata.Validate(); err != nil {
		return nil, types.NewValidationError("%s", err.Error())
	}
	conn := db.GetDb()
	method := models.PayoutMethod{
		SellerUserID: sellerID,
		Type:         body.Type,
		Currency:     body.Currency,
		IsDefault:    body.IsDefault,
		Metadata:     body.Metadata,
	}
	err := conn.Transaction(func(tx *gorm.DB) error {
		if body.IsDefault {
			if err := tx.
				Model(&models.PayoutMethod{}).
				Where("seller_user_id = ? AND is_default = ?", sellerID, true).
				Update("is_default", false).
				Error; err != nil {
				return err
			}
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		return nil, err
	}
	return &method, nil
}

// ListPayoutMethods returns the seller's registered destinations.
func (s *PayoutService) ListPayoutMethods(sellerID uint) ([]models.PayoutMethod, error) {
	var methods []models.PayoutMethod
	err := db.GetDb().
		Model(&models.PayoutMethod{}).
		Where(&models.PayoutMethod{SellerUserID: sellerID}).
		Order("is_default DESC, created_at").
		Find(&methods).
		Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}
