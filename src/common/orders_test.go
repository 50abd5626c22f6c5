package common

import (
	"revendiste/src/config"
	"revendiste/src/testutil"
	"revendiste/src/types"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

type stubCatalog struct {
	available []uint
	currency  string
	price     decimal.Decimal
}

func (c *stubCatalog) AvailableTickets(waveID uint, price decimal.Decimal, excludeSellerID uint) ([]uint, error) {
	return c.available, nil
}

func (c *stubCatalog) TicketPrice(ticketID uint) (decimal.Decimal, string, error) {
	return c.price, c.currency, nil
}

func newTestOrderService(catalog Catalog) *OrderService {
	cfg := config.DefaultEngine()
	return NewOrderService(cfg, catalog, NewReservationManager(), NewEarningsService(cfg), NopEmitter{})
}

func TestPriceBreakdownScenario(t *testing.T) {
	svc := newTestOrderService(nil)

	// 2 tickets at 1000 UYU, commission 0.06, VAT 0.22.
	commission, vat, total := svc.PriceBreakdown(decimal.NewFromInt(2000))
	assert.Equal(t, "120.00", commission.StringFixed(2))
	assert.Equal(t, "26.40", vat.StringFixed(2))
	assert.Equal(t, "2146.40", total.StringFixed(2))
}

func TestPriceBreakdownIdentity(t *testing.T) {
	svc := newTestOrderService(nil)
	for _, subtotal := range []string{"0", "1", "999.99", "1500.50", "123456.78"} {
		sub := decimal.RequireFromString(subtotal)
		commission, vat, total := svc.PriceBreakdown(sub)
		assert.True(t, total.Equal(sub.Add(commission).Add(vat)), "identity broken for subtotal %s", subtotal)
	}
}

func TestCreateOrderEmptySelection(t *testing.T) {
	svc := newTestOrderService(&stubCatalog{})
	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{EventID: 5})
	assert.True(t, types.IsValidation(err))
}

func TestCreateOrderEventNotFound(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})

	mock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{10: {"1000.00": 1}},
	})
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectEventWithWaves(mock sqlmock.Sqlmock, eventID uint, waveIDs ...uint) {
	mock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ends_at"}).
			AddRow(eventID, time.Now().Add(30*24*time.Hour)))
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range waveIDs {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_waves"`).WillReturnRows(rows)
}

func TestCreateOrderUnknownWave(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})

	expectEventWithWaves(mock, 5, 10)

	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{99: {"1000.00": 1}},
	})
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderZeroQuantity(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})

	expectEventWithWaves(mock, 5, 10)

	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{10: {"1000.00": 0}},
	})
	assert.True(t, types.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderInvalidPriceGroup(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})

	expectEventWithWaves(mock, 5, 10)

	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{10: {"front row": 1}},
	})
	assert.True(t, types.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderNotEnoughAvailability(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{available: []uint{11}})

	expectEventWithWaves(mock, 5, 10)

	_, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{10: {"1000.00": 2}},
	})
	assert.True(t, types.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderPersistsBreakdownAndReservations(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	catalog := &stubCatalog{
		available: []uint{11, 12},
		currency:  "UYU",
		price:     decimal.NewFromInt(1000),
	}
	svc := newTestOrderService(catalog)

	expectEventWithWaves(mock, 5, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e7a2e2f6-3c59-4b41-9c3a-0d3f8a1b2c4d"))
	mock.ExpectQuery(`INSERT INTO "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "order_ticket_reservations" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "listing_tickets"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sold_at", "cancelled_at"}).
			AddRow(11, nil, nil).
			AddRow(12, nil, nil))
	mock.ExpectQuery(`SELECT (.+) FROM "order_ticket_reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "order_ticket_reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("9a0b1c2d-3e4f-4a5b-8c6d-7e8f90a1b2c3"))
	mock.ExpectCommit()

	order, err := svc.CreateOrder(1, types.CreateOrderRequestBody{
		EventID:    5,
		Selections: map[uint]map[string]uint{10: {"1000.00": 2}},
	})
	assert.NoError(t, err)
	assert.Equal(t, types.ORDER_PENDING, order.Status)
	assert.Equal(t, "2000.00", order.SubtotalAmount.StringFixed(2))
	assert.Equal(t, "120.00", order.PlatformCommission.StringFixed(2))
	assert.Equal(t, "26.40", order.VatOnCommission.StringFixed(2))
	assert.Equal(t, "2146.40", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "UYU", order.Currency)
	assert.Len(t, order.Items, 1)
	assert.Len(t, order.Reservations, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmOrderRefusesTerminalStates(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})
	orderID := "3f1a9c2e-8d7b-4e6f-a1b2-c3d4e5f6a7b8"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "orders"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(orderID, "cancelled"))
	mock.ExpectRollback()

	err := svc.ConfirmOrder(mustUUID(orderID))
	assert.True(t, types.IsState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmOrderIsIdempotentForConfirmed(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestOrderService(&stubCatalog{})
	orderID := "3f1a9c2e-8d7b-4e6f-a1b2-c3d4e5f6a7b8"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "orders"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(orderID, "confirmed"))
	mock.ExpectCommit()

	err := svc.ConfirmOrder(mustUUID(orderID))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
