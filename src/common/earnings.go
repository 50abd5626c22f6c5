package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"revendiste/src/config"
	"revendiste/src/db"
	"revendiste/src/lib"
	"revendiste/src/models"
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EarningsService runs the per-ticket earning state machine:
// pending -> available -> paid_out, with failed_payout as an audit-only
// terminal and retained as the manual-intervention branch.
type EarningsService struct {
	cfg config.Engine
}

func NewEarningsService(cfg config.Engine) *EarningsService {
	return &EarningsService{cfg: cfg}
}

// ReleaseMatured flips pending earnings whose hold lapsed to available.
// This is the scheduled entry point that gates payouts until the seller
// has had a chance to deliver. Per-row failures are logged and skipped.
func (s *EarningsService) ReleaseMatured() {
	conn := db.GetDb()
	now := time.Now().UTC()
	var candidates []models.SellerEarning
	if err := conn.
		Model(&models.SellerEarning{}).
		Where("status = ? AND hold_until <= ?", types.EARNING_PENDING, now).
		Select("id", "seller_user_id").
		Find(&candidates).
		Error; err != nil {
		log.Printf("[hold-release] Error selecting matured earnings: %s\n", err.Error())
		return
	}
	if len(candidates) == 0 {
		return
	}
	released := 0
	sellers := make(map[uint]bool)
	for i := range candidates {
		err := conn.
			Model(&models.SellerEarning{}).
			Where("id = ? AND status = ?", candidates[i].ID, types.EARNING_PENDING).
			Update("status", types.EARNING_AVAILABLE).
			Error
		if err != nil {
			log.Printf("[hold-release] Error releasing earning %s: %s\n", candidates[i].ID, err.Error())
			continue
		}
		released++
		sellers[candidates[i].SellerUserID] = true
	}
	sellerIDs := make([]uint, 0, len(sellers))
	for id := range sellers {
		sellerIDs = append(sellerIDs, id)
	}
	s.InvalidateBalance(sellerIDs...)
	log.Printf("[hold-release] Released %d of %d matured earnings\n", released, len(candidates))
}

type balanceRow struct {
	SellerUserID uint
	Currency     string
	Status       types.EarningStatus
	Amount       decimal.Decimal
}

// Balance aggregates the seller's earnings by currency and status.
// failed_payout rows are excluded everywhere: each one is superseded by
// its available clone. Served from a short-TTL cache when possible;
// staleness of a few seconds is acceptable for display reads.
func (s *EarningsService) Balance(sellerID uint) ([]models.SellerBalance, error) {
	if cached, ok := s.cachedBalance(sellerID); ok {
		return cached, nil
	}
	conn := db.GetDb()
	var rows []balanceRow
	err := conn.
		Model(&models.SellerEarning{}).
		Select("seller_user_id", "currency", "status", "SUM(seller_amount) AS amount").
		Where("seller_user_id = ?", sellerID).
		Where("status <> ?", types.EARNING_FAILED_PAYOUT).
		Group("seller_user_id").
		Group("currency").
		Group("status").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	byCurrency := make(map[string]*models.SellerBalance)
	var currencies []string
	for _, row := range rows {
		b, ok := byCurrency[row.Currency]
		if !ok {
			b = &models.SellerBalance{
				SellerUserID: sellerID,
				Currency:     row.Currency,
				Pending:      decimal.Zero,
				Available:    decimal.Zero,
				Retained:     decimal.Zero,
				PaidOut:      decimal.Zero,
			}
			byCurrency[row.Currency] = b
			currencies = append(currencies, row.Currency)
		}
		switch row.Status {
		case types.EARNING_PENDING:
			b.Pending = b.Pending.Add(row.Amount)
		case types.EARNING_AVAILABLE:
			b.Available = b.Available.Add(row.Amount)
		case types.EARNING_RETAINED:
			b.Retained = b.Retained.Add(row.Amount)
		case types.EARNING_PAID_OUT:
			b.PaidOut = b.PaidOut.Add(row.Amount)
		}
	}
	balances := make([]models.SellerBalance, 0, len(currencies))
	for _, currency := range currencies {
		b := byCurrency[currency]
		b.Total = b.Pending.Add(b.Available).Add(b.Retained).Add(b.PaidOut)
		balances = append(balances, *b)
	}
	s.cacheBalance(sellerID, balances)
	return balances, nil
}

// AvailableForSelection lists the earnings a seller can still put into
// a payout, with their tickets preloaded for display.
func (s *EarningsService) AvailableForSelection(sellerID uint) ([]models.SellerEarning, error) {
	var earnings []models.SellerEarning
	err := db.GetDb().
		Model(&models.SellerEarning{}).
		Where("seller_user_id = ? AND status = ? AND payout_id IS NULL", sellerID, types.EARNING_AVAILABLE).
		Preload("Ticket").
		Preload("Ticket.Listing").
		Order("created_at").
		Find(&earnings).
		Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

// Retain pulls an earning out of the payout flow for dispute or
// compliance review. There is no automatic way back; release from
// retained is an administrative decision.
func (s *EarningsService) Retain(earningID uuid.UUID) error {
	conn := db.GetDb()
	var sellerID uint
	err := conn.Transaction(func(tx *gorm.DB) error {
		var earning models.SellerEarning
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", earningID).
			First(&earning).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Resource: "earning"}
			}
			return err
		}
		if earning.Status != types.EARNING_PENDING && earning.Status != types.EARNING_AVAILABLE {
			return types.NewStateError("cannot retain %s earning %s", earning.Status, earningID)
		}
		sellerID = earning.SellerUserID
		return tx.
			Model(&models.SellerEarning{}).
			Where("id = ?", earningID).
			Update("status", types.EARNING_RETAINED).
			Error
	})
	if err != nil {
		return err
	}
	s.InvalidateBalance(sellerID)
	return nil
}

func balanceCacheKey(sellerID uint) string {
	return fmt.Sprintf("balance:%d", sellerID)
}

func (s *EarningsService) cachedBalance(sellerID uint) ([]models.SellerBalance, bool) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return nil, false
	}
	val, err := rd.Get(context.Background(), balanceCacheKey(sellerID)).Result()
	if err != nil {
		return nil, false
	}
	var balances []models.SellerBalance
	if err := json.Unmarshal([]byte(val), &balances); err != nil {
		return nil, false
	}
	return balances, true
}

func (s *EarningsService) cacheBalance(sellerID uint, balances []models.SellerBalance) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	b, err := json.Marshal(balances)
	if err != nil {
		return
	}
	if err := rd.Set(context.Background(), balanceCacheKey(sellerID), b, s.cfg.BalanceCacheTTL).Err(); err != nil {
		log.Printf("Failed to cache balance for seller %d: %s\n", sellerID, err.Error())
	}
}

// InvalidateBalance drops the cached balance view for each seller.
// Called by every money-moving transition.
func (s *EarningsService) InvalidateBalance(sellerIDs ...uint) {
	if len(sellerIDs) == 0 {
		return
	}
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	keys := make([]string, 0, len(sellerIDs))
	for _, id := range sellerIDs {
		keys = append(keys, balanceCacheKey(id))
	}
	if err := rd.Del(context.Background(), keys...).Err(); err != nil {
		log.Printf("Failed to invalidate balance cache: %s\n", err.Error())
	}
}
