package common

import (
	"log"
	"revendiste/src/db"
	"revendiste/src/models"
	"revendiste/src/types"
	"time"

	"github.com/google/uuid"
)

// Reaper is the scheduled safety net behind the inline expiry check in
// Reserve: it reclaims reservations whose deadline passed and expires
// the pending orders that held them. A stuck sweep is abandoned and
// retried on the next tick, never retried in a loop.
type Reaper struct {
	orders *OrderService
}

func NewReaper(orders *OrderService) *Reaper {
	return &Reaper{orders: orders}
}

func (r *Reaper) Sweep() {
	conn := db.GetDb()
	now := time.Now().UTC()

	result := conn.
		Where("reserved_until < ?", now).
		Delete(&models.OrderTicketReservation{})
	if result.Error != nil {
		log.Printf("[reaper] Error sweeping expired reservations: %s\n", result.Error.Error())
	} else if result.RowsAffected > 0 {
		log.Printf("[reaper] Swept %d expired reservations\n", result.RowsAffected)
	}

	var orderIDs []uuid.UUID
	if err := conn.
		Model(&models.Order{}).
		Where("status = ? AND reservation_expires_at < ?", types.ORDER_PENDING, now).
		Pluck("id", &orderIDs).
		Error; err != nil {
		log.Printf("[reaper] Error selecting expired orders: %s\n", err.Error())
		return
	}
	expired := 0
	for _, id := range orderIDs {
		if err := r.orders.ExpireOrder(id); err != nil {
			log.Printf("[reaper] Error expiring order %s: %s\n", id, err.Error())
			continue
		}
		expired++
	}
	if len(orderIDs) > 0 {
		log.Printf("[reaper] Expired %d of %d overdue orders\n", expired, len(orderIDs))
	}
}
