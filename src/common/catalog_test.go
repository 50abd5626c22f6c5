package common

import (
	"revendiste/src/testutil"
	"revendiste/src/types"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAvailableTicketsExcludesReservedAndOwn(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	catalog := &GormCatalog{}

	// The query must hide sold, cancelled and own-seller tickets, and a
	// reservation is only blocking while reserved_until is in the
	// future: a lapsed one is invisible even before the reaper ran.
	mock.ExpectQuery(`(?s)SELECT (.+) FROM "listing_tickets" JOIN listings ON (.+)` +
		`sold_at IS NULL(.+)cancelled_at IS NULL(.+)seller_user_id <> (.+)` +
		`NOT EXISTS(.+)deleted_at IS NULL(.+)reserved_until > `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11).AddRow(12))

	ids, err := catalog.AvailableTickets(10, decimal.NewFromInt(1000), 7)
	assert.NoError(t, err)
	assert.Equal(t, []uint{11, 12}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableTicketsEmptyWave(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	catalog := &GormCatalog{}

	mock.ExpectQuery(`SELECT (.+) FROM "listing_tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := catalog.AvailableTickets(10, decimal.NewFromInt(1000), 7)
	assert.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketPrice(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	catalog := &GormCatalog{}

	mock.ExpectQuery(`SELECT (.+) FROM "listing_tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price", "currency"}).
			AddRow(11, "1000.00", "UYU"))

	price, currency, err := catalog.TicketPrice(11)
	assert.NoError(t, err)
	assert.Equal(t, "1000.00", price.StringFixed(2))
	assert.Equal(t, "UYU", currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketPriceNotFound(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	catalog := &GormCatalog{}

	mock.ExpectQuery(`SELECT (.+) FROM "listing_tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := catalog.TicketPrice(11)
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
