package common

import (
	"errors"
	"log"
	"revendiste/src/config"
	"revendiste/src/db"
	"revendiste/src/models"
	"revendiste/src/types"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderService owns the cart-to-purchase lifecycle and its price
// breakdown. Rates come from the injected config, never from the
// environment.
type OrderService struct {
	cfg          config.Engine
	catalog      Catalog
	reservations *ReservationManager
	earnings     *EarningsService
	emitter      Emitter
}

func NewOrderService(cfg config.Engine, catalog Catalog, rm *ReservationManager, earnings *EarningsService, emitter Emitter) *OrderService {
	return &OrderService{
		cfg:          cfg,
		catalog:      catalog,
		reservations: rm,
		earnings:     earnings,
		emitter:      emitter,
	}
}

// PriceBreakdown applies the configured commission and VAT rates to a
// subtotal. All arithmetic is decimal; rounding happens once per
// component so the identity subtotal+commission+vat == total holds.
func (s *OrderService) PriceBreakdown(subtotal decimal.Decimal) (commission, vat, total decimal.Decimal) {
	commission = subtotal.Mul(s.cfg.PlatformCommissionRate).Round(2)
	vat = commission.Mul(s.cfg.VATRate).Round(2)
	total = subtotal.Add(commission).Add(vat)
	return commission, vat, total
}

type orderLine struct {
	waveID  uint
	price   decimal.Decimal
	qty     uint
	tickets []uint
}

// CreateOrder resolves the buyer's (wave, price) selections to concrete
// tickets, reserves them and persists the order with its price
// breakdown, all inside one transaction. On any failure nothing is kept.
func (s *OrderService) CreateOrder(userID uint, body types.CreateOrderRequestBody) (*models.Order, error) {
	if len(body.Selections) == 0 {
		return nil, types.NewValidationError("selection is empty")
	}
	conn := db.GetDb()

	var event models.Event
	if err := conn.
		Model(&models.Event{}).
		Where(&models.Event{ID: body.EventID}).
		First(&event).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrEventNotFound
		}
		return nil, err
	}

	var waveIDs []uint
	if err := conn.
		Model(&models.TicketWave{}).
		Where(&models.TicketWave{EventID: body.EventID}).
		Pluck("id", &waveIDs).
		Error; err != nil {
		return nil, err
	}
	eventWaves := make(map[uint]bool, len(waveIDs))
	for _, id := range waveIDs {
		eventWaves[id] = true
	}

	lines, err := s.resolveSelections(userID, body.Selections, eventWaves)
	if err != nil {
		return nil, err
	}

	currency, err := s.resolveCurrency(lines)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.price.Mul(decimal.NewFromInt(int64(line.qty))))
	}
	commission, vat, total := s.PriceBreakdown(subtotal)

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.ReservationTTL)
	order := models.Order{
		ID:                   uuid.New(),
		UserID:               userID,
		EventID:              body.EventID,
		Status:               types.ORDER_PENDING,
		SubtotalAmount:       subtotal,
		PlatformCommission:   commission,
		VatOnCommission:      vat,
		TotalAmount:          total,
		Currency:             currency,
		ReservationExpiresAt: expiresAt,
	}

	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, line := range lines {
			item := models.OrderItem{
				OrderID:        order.ID,
				TicketWaveID:   line.waveID,
				PricePerTicket: line.price,
				Quantity:       line.qty,
				Subtotal:       line.price.Mul(decimal.NewFromInt(int64(line.qty))),
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		var ticketIDs []uint
		for _, line := range lines {
			ticketIDs = append(ticketIDs, line.tickets...)
		}
		reservations, err := s.reservations.Reserve(tx, order.ID, ticketIDs, expiresAt)
		if err != nil {
			return err
		}
		order.Reservations = reservations
		payment := models.Payment{
			ID:       uuid.New(),
			OrderID:  order.ID,
			Status:   types.PAYMENT_PENDING,
			Amount:   total,
			Currency: currency,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}

	// The gateway call happens strictly outside the transaction.
	s.emitter.Emit(TopicPaymentLinkRequested, types.JSONB{
		"order_id": order.ID.String(),
		"amount":   order.TotalAmount.String(),
		"currency": order.Currency,
	})
	return &order, nil
}

func (s *OrderService) resolveSelections(userID uint, selections map[uint]map[string]uint, eventWaves map[uint]bool) ([]orderLine, error) {
	waveIDs := make([]uint, 0, len(selections))
	for waveID := range selections {
		waveIDs = append(waveIDs, waveID)
	}
	sort.Slice(waveIDs, func(i, j int) bool { return waveIDs[i] < waveIDs[j] })

	var lines []orderLine
	for _, waveID := range waveIDs {
		if !eventWaves[waveID] {
			return nil, types.ErrTicketWaveNotFound
		}
		priceKeys := make([]string, 0, len(selections[waveID]))
		for key := range selections[waveID] {
			priceKeys = append(priceKeys, key)
		}
		sort.Strings(priceKeys)
		for _, key := range priceKeys {
			qty := selections[waveID][key]
			if qty == 0 {
				return nil, types.NewValidationError("quantity must be positive")
			}
			price, err := decimal.NewFromString(key)
			if err != nil || price.IsNegative() {
				return nil, types.NewValidationError("invalid price group %q", key)
			}
			available, err := s.catalog.AvailableTickets(waveID, price, userID)
			if err != nil {
				return nil, err
			}
			if uint(len(available)) < qty {
				return nil, types.NewNotEnoughAvailability(nil)
			}
			lines = append(lines, orderLine{
				waveID:  waveID,
				price:   price,
				qty:     qty,
				tickets: available[:qty],
			})
		}
	}
	return lines, nil
}

func (s *OrderService) resolveCurrency(lines []orderLine) (string, error) {
	currency := ""
	for _, line := range lines {
		_, ticketCurrency, err := s.catalog.TicketPrice(line.tickets[0])
		if err != nil {
			return "", err
		}
		if currency == "" {
			currency = ticketCurrency
		} else if currency != ticketCurrency {
			return "", types.NewValidationError("selection mixes currencies %s and %s", currency, ticketCurrency)
		}
	}
	return currency, nil
}

// ConfirmOrder finalizes a paid order: reservations become permanent
// sales, tickets are marked sold and one pending earning per ticket is
// created with its hold period. Atomic with the status transition.
func (s *OrderService) ConfirmOrder(orderID uuid.UUID) error {
	conn := db.GetDb()
	now := time.Now().UTC()
	var sellerIDs []uint
	var soldTickets []models.ListingTicket
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrOrderNotFound
			}
			return err
		}
		if order.Status == types.ORDER_CONFIRMED {
			// Duplicate paid signal; nothing left to do.
			return nil
		}
		if order.Status != types.ORDER_PENDING {
			return types.NewStateError("cannot confirm %s order %s", order.Status, orderID)
		}

		var event models.Event
		if err := tx.
			Model(&models.Event{}).
			Where(&models.Event{ID: order.EventID}).
			First(&event).
			Error; err != nil {
			return err
		}

		reservations, err := s.reservations.ActiveForOrder(tx, orderID)
		if err != nil {
			return err
		}
		if len(reservations) == 0 {
			return types.NewStateError("order %s no longer holds its reservations", orderID)
		}
		ticketIDs := make([]uint, 0, len(reservations))
		for i := range reservations {
			ticketIDs = append(ticketIDs, reservations[i].ListingTicketID)
		}

		// The claims convert into permanent sales.
		if err := s.reservations.Release(tx, orderID); err != nil {
			return err
		}
		if err := tx.
			Model(&models.ListingTicket{}).
			Where("id IN ?", ticketIDs).
			Update("sold_at", now).
			Error; err != nil {
			return err
		}

		var tickets []models.ListingTicket
		if err := tx.
			Preload("Listing").
			Where("id IN ?", ticketIDs).
			Find(&tickets).
			Error; err != nil {
			return err
		}

		holdUntil := event.EndsAt
		if min := now.Add(s.cfg.MinimumHold); min.After(holdUntil) {
			holdUntil = min
		}
		for i := range tickets {
			earning := models.SellerEarning{
				ID:              uuid.New(),
				SellerUserID:    tickets[i].Listing.SellerUserID,
				ListingTicketID: tickets[i].ID,
				OrderID:         orderID,
				SellerAmount:    tickets[i].Price,
				Currency:        tickets[i].Currency,
				HoldUntil:       holdUntil,
				Status:          types.EARNING_PENDING,
			}
			if err := tx.Create(&earning).Error; err != nil {
				return err
			}
			sellerIDs = append(sellerIDs, tickets[i].Listing.SellerUserID)
		}
		soldTickets = tickets

		return tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]any{
				"status":       types.ORDER_CONFIRMED,
				"confirmed_at": now,
			}).
			Error
	})
	if err != nil {
		return err
	}

	s.earnings.InvalidateBalance(sellerIDs...)
	s.emitter.Emit(TopicOrderConfirmed, types.JSONB{"order_id": orderID.String()})
	for i := range soldTickets {
		s.emitter.Emit(TopicTicketSold, types.JSONB{
			"order_id":          orderID.String(),
			"listing_ticket_id": soldTickets[i].ID,
			"seller_user_id":    soldTickets[i].Listing.SellerUserID,
		})
	}
	return nil
}

// ExpireOrder moves a pending order whose deadline lapsed to expired
// and releases its claims. Expiring an already-expired order is a no-op.
func (s *OrderService) ExpireOrder(orderID uuid.UUID) error {
	return s.terminateOrder(orderID, types.ORDER_EXPIRED, TopicOrderExpired)
}

// CancelOrder ends a pending order after a failed or cancelled payment.
func (s *OrderService) CancelOrder(orderID uuid.UUID) error {
	return s.terminateOrder(orderID, types.ORDER_CANCELLED, TopicOrderCancelled)
}

func (s *OrderService) terminateOrder(orderID uuid.UUID, status types.OrderStatus, topic string) error {
	conn := db.GetDb()
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrOrderNotFound
			}
			return err
		}
		if order.Status == status {
			return nil
		}
		if order.Status != types.ORDER_PENDING {
			return types.NewStateError("cannot move %s order %s to %s", order.Status, orderID, status)
		}
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", status).
			Error; err != nil {
			return err
		}
		return s.reservations.Release(tx, orderID)
	})
	if err != nil {
		return err
	}
	s.emitter.Emit(topic, types.JSONB{"order_id": orderID.String()})
	return nil
}

// OnPaymentStatusChanged is the whole inbound payment boundary. Every
// signal is appended to the audit trail before the transition applies.
func (s *OrderService) OnPaymentStatusChanged(orderID uuid.UUID, status types.PaymentStatus, payload types.JSONB) error {
	conn := db.GetDb()
	paymentEvent := models.PaymentEvent{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  status,
		Payload: payload,
	}
	if err := conn.Create(&paymentEvent).Error; err != nil {
		log.Printf("Error recording payment event for order %s: %s\n", orderID, err.Error())
		return err
	}
	if err := conn.
		Model(&models.Payment{}).
		Where(&models.Payment{OrderID: orderID}).
		Update("status", status).
		Error; err != nil {
		log.Printf("Error updating payment status for order %s: %s\n", orderID, err.Error())
	}

	switch status {
	case types.PAYMENT_PAID:
		return s.ConfirmOrder(orderID)
	case types.PAYMENT_FAILED, types.PAYMENT_CANCELLED:
		return s.CancelOrder(orderID)
	case types.PAYMENT_EXPIRED:
		return s.ExpireOrder(orderID)
	case types.PAYMENT_PENDING:
		return nil
	default:
		return types.NewValidationError("unknown payment status %q", status)
	}
}

// GetOrder returns the buyer's order with its line items. Ownership is
// part of the lookup: another user's order reads as not found.
func (s *OrderService) GetOrder(orderID uuid.UUID, userID uint) (*models.Order, error) {
	conn := db.GetDb()
	var order models.Order
	err := conn.
		Model(&models.Order{}).
		Where(&models.Order{ID: orderID, UserID: userID}).
		Preload("Items").
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// OrderHistory lists the buyer's orders, newest first.
func (s *OrderService) OrderHistory(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := db.GetDb().
		Model(&models.Order{}).
		Where(&models.Order{UserID: userID}).
		Preload("Items").
		Order("created_at DESC").
		Limit(100).
		Find(&orders).
		Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
