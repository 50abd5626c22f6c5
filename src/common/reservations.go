package common

import (
	"errors"
	"log"
	"revendiste/src/models"
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationManager grants and releases time-boxed exclusive claims on
// listing tickets. All methods operate on the transaction handle they
// are given: reservation writes must commit or roll back together with
// the order writes that caused them.
//
// Exclusivity is enforced twice: a live re-check under FOR UPDATE inside
// the transaction, and the partial unique index on listing_ticket_id
// for rows with deleted_at IS NULL. A concurrent reserver that slips
// past the re-check loses on the index and gets a conflict, never a
// second reservation.
type ReservationManager struct{}

func NewReservationManager() *ReservationManager {
	return &ReservationManager{}
}

// Reserve claims every ticket in ticketIDs for orderID until the given
// deadline. All-or-nothing: on any unavailable ticket the whole batch
// fails with a ConflictError naming the tickets that were taken.
func (m *ReservationManager) Reserve(tx *gorm.DB, orderID uuid.UUID, ticketIDs []uint, until time.Time) ([]models.OrderTicketReservation, error) {
	if len(ticketIDs) == 0 {
		return nil, types.NewValidationError("no tickets to reserve")
	}
	now := time.Now().UTC()

	// Opportunistically clear stale claims on the requested tickets so
	// an abandoned purchase never blocks a buyer between reaper ticks.
	if err := tx.
		Where("listing_ticket_id IN ? AND reserved_until < ?", ticketIDs, now).
		Delete(&models.OrderTicketReservation{}).
		Error; err != nil {
		return nil, err
	}

	var tickets []models.ListingTicket
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ticketIDs).
		Find(&tickets).
		Error; err != nil {
		return nil, err
	}
	sellable := make(map[uint]bool, len(tickets))
	for i := range tickets {
		sellable[tickets[i].ID] = tickets[i].Sellable()
	}
	var unavailable []uint
	for _, id := range ticketIDs {
		if !sellable[id] {
			unavailable = append(unavailable, id)
		}
	}
	if len(unavailable) > 0 {
		return nil, types.NewNotEnoughAvailability(unavailable)
	}

	var live []models.OrderTicketReservation
	if err := tx.
		Where("listing_ticket_id IN ? AND reserved_until > ?", ticketIDs, now).
		Find(&live).
		Error; err != nil {
		return nil, err
	}
	if len(live) > 0 {
		taken := make([]uint, 0, len(live))
		for i := range live {
			taken = append(taken, live[i].ListingTicketID)
		}
		return nil, types.NewNotEnoughAvailability(taken)
	}

	reservations := make([]models.OrderTicketReservation, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		reservations = append(reservations, models.OrderTicketReservation{
			OrderID:         orderID,
			ListingTicketID: id,
			ReservedAt:      now,
			ReservedUntil:   until,
		})
	}
	if err := tx.Create(&reservations).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent reserver committed first; the index has the
			// final word and the insert rolls back as a whole.
			return nil, types.NewNotEnoughAvailability(ticketIDs)
		}
		return nil, err
	}
	return reservations, nil
}

// Release soft-deletes every live reservation held by the order.
// Releasing an already-released order is a no-op.
func (m *ReservationManager) Release(tx *gorm.DB, orderID uuid.UUID) error {
	result := tx.
		Where(&models.OrderTicketReservation{OrderID: orderID}).
		Delete(&models.OrderTicketReservation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Released %d reservations for order %s\n", result.RowsAffected, orderID)
	}
	return nil
}

// Extend pushes the deadline of the order's reservations forward, used
// while a payment redirect is in flight. It refuses to extend once the
// order is no longer pending.
func (m *ReservationManager) Extend(tx *gorm.DB, orderID uuid.UUID, newUntil time.Time) error {
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
	if order.Status != types.ORDER_PENDING {
		return types.NewStateError("cannot extend reservations of %s order %s", order.Status, orderID)
	}
	if !newUntil.After(order.ReservationExpiresAt) {
		return types.NewValidationError("new deadline %s does not extend the reservation", newUntil)
	}
	if err := tx.
		Model(&models.OrderTicketReservation{}).
		Where(&models.OrderTicketReservation{OrderID: orderID}).
		Update("reserved_until", newUntil).
		Error; err != nil {
		return err
	}
	return tx.
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("reservation_expires_at", newUntil).
		Error
}

// ActiveForOrder returns the order's live reservations.
func (m *ReservationManager) ActiveForOrder(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderTicketReservation, error) {
	var reservations []models.OrderTicketReservation
	err := tx.
		Where(&models.OrderTicketReservation{OrderID: orderID}).
		Find(&reservations).
		Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
