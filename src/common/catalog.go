package common

import (
	"errors"
	"revendiste/src/db"
	"revendiste/src/models"
	"revendiste/src/types"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Catalog resolves sellable inventory. The order ledger consumes this
// interface only; GormCatalog is the store-backed implementation.
type Catalog interface {
	AvailableTickets(waveID uint, price decimal.Decimal, excludeSellerID uint) ([]uint, error)
	TicketPrice(ticketID uint) (decimal.Decimal, string, error)
}

type GormCatalog struct{}

// AvailableTickets returns ticket ids in the wave at the given price
// that are unsold, uncancelled, not under a live reservation and not
// listed by excludeSellerID. A seller never buys their own ticket.
func (c *GormCatalog) AvailableTickets(waveID uint, price decimal.Decimal, excludeSellerID uint) ([]uint, error) {
	conn := db.GetDb()
	now := time.Now().UTC()
	var ids []uint
	err := conn.
		Model(&models.ListingTicket{}).
		Joins("JOIN listings ON listings.id = listing_tickets.listing_id AND listings.deleted_at IS NULL").
		Where("listing_tickets.ticket_wave_id = ?", waveID).
		Where("listing_tickets.price = ?", price).
		Where("listing_tickets.sold_at IS NULL").
		Where("listing_tickets.cancelled_at IS NULL").
		Where("listings.seller_user_id <> ?", excludeSellerID).
		Where(`NOT EXISTS (
			SELECT 1 FROM order_ticket_reservations r
			WHERE r.listing_ticket_id = listing_tickets.id
			AND r.deleted_at IS NULL
			AND r.reserved_until > ?)`, now).
		Order("listing_tickets.id").
		Pluck("listing_tickets.id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *GormCatalog) TicketPrice(ticketID uint) (decimal.Decimal, string, error) {
	conn := db.GetDb()
	var ticket models.ListingTicket
	err := conn.
		Model(&models.ListingTicket{}).
		Where(&models.ListingTicket{ID: ticketID}).
		Select("id", "price", "currency").
		First(&ticket).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", &types.NotFoundError{Resource: "listing ticket"}
		}
		return decimal.Zero, "", err
	}
	return ticket.Price, ticket.Currency, nil
}
