package common

import (
	"encoding/json"
	"log"
	"revendiste/src/lib"
	"revendiste/src/types"

	"github.com/google/uuid"
)

const (
	TopicTicketSold           = "ticket-sold"
	TopicOrderConfirmed       = "order-confirmed"
	TopicOrderExpired         = "order-expired"
	TopicOrderCancelled       = "order-cancelled"
	TopicPayoutCompleted      = "payout-completed"
	TopicPayoutFailed         = "payout-failed"
	TopicPaymentLinkRequested = "payment-link-requested"
	TopicPaymentStatus        = "payment-status"
)

// Emitter publishes domain events for the external notifier. Delivery
// and retry are the subscriber's problem, not ours.
type Emitter interface {
	Emit(topic string, payload types.JSONB)
}

type KafkaEmitter struct {
	ClientID string
}

func (e *KafkaEmitter) Emit(topic string, payload types.JSONB) {
	go func() {
		if err := lib.KafkaProduceMessage(e.ClientID, topic, payload); err != nil {
			log.Printf("Error emitting %s event: %s\n", topic, err.Error())
		}
	}()
}

// NopEmitter drops every event. Used in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(topic string, payload types.JSONB) {}

// StartPaymentStatusConsumer wires the inbound payment-status topic to
// the order ledger. This is the only signal the engine consumes from
// the payment subsystem.
func StartPaymentStatusConsumer(orders *OrderService) {
	lib.KafkaConsume("payment_status_group", []string{TopicPaymentStatus}, func(topic string, body []byte) {
		var msg types.PaymentStatusChangedBody
		if err := json.Unmarshal(body, &msg); err != nil {
			log.Printf("[payment-status] Received invalid body: %s\n", err.Error())
			return
		}
		orderID, err := uuid.Parse(msg.OrderID)
		if err != nil {
			log.Printf("[payment-status] Invalid order id %q: %s\n", msg.OrderID, err.Error())
			return
		}
		if err := orders.OnPaymentStatusChanged(orderID, msg.Status, types.JSONB{"source": "kafka"}); err != nil {
			log.Printf("[payment-status] Error applying %s for order %s: %s\n", msg.Status, orderID, err.Error())
		}
	})
}
