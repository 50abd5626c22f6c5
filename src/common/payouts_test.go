package common

import (
	"revendiste/src/config"
	"revendiste/src/testutil"
	"revendiste/src/types"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func newTestPayoutService() *PayoutService {
	return NewPayoutService(NewEarningsService(config.DefaultEngine()), NopEmitter{})
}

func TestRequestPayoutEmptySelection(t *testing.T) {
	svc := newTestPayoutService()
	_, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{PayoutMethodID: 1})
	assert.True(t, types.IsValidation(err))
}

func TestRequestPayoutUnknownMethod(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{
		PayoutMethodID:   9,
		ListingTicketIDs: []uint{11},
	})
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayoutNoAvailableEarnings(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id"}).AddRow(9, 7))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{
		PayoutMethodID:   9,
		ListingTicketIDs: []uint{11},
	})
	assert.True(t, types.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayoutRefusesMixedCurrencies(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id"}).AddRow(9, 7))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "currency", "seller_amount"}).
			AddRow("0a4f6f9e-1b2c-4d5e-8f90-112233445566", "UYU", "500.00").
			AddRow("1b5a7c0d-2c3d-4e6f-9a01-223344556677", "USD", "20.00"))
	mock.ExpectRollback()

	_, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{
		PayoutMethodID:   9,
		ListingTicketIDs: []uint{11, 12},
	})
	assert.True(t, types.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayoutLinksEarnings(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id"}).AddRow(9, 7))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "currency", "seller_amount"}).
			AddRow("0a4f6f9e-1b2c-4d5e-8f90-112233445566", "UYU", "500.00").
			AddRow("1b5a7c0d-2c3d-4e6f-9a01-223344556677", "UYU", "700.00"))
	mock.ExpectQuery(`INSERT INTO "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("2c6b8d1e-3d4e-4f70-ab12-334455667788"))
	mock.ExpectExec(`UPDATE "seller_earnings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	payout, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{
		PayoutMethodID:   9,
		ListingTicketIDs: []uint{11, 12},
	})
	assert.NoError(t, err)
	assert.Equal(t, types.PAYOUT_PENDING, payout.Status)
	assert.Equal(t, "1200.00", payout.Amount.StringFixed(2))
	assert.Equal(t, "UYU", payout.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayoutRejectsForeignListing(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id"}).AddRow(9, 7))
	mock.ExpectQuery(`SELECT count(.+) FROM "listings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.RequestPayout(7, types.RequestPayoutRequestBody{
		PayoutMethodID: 9,
		ListingIDs:     []uint{3, 4},
	})
	assert.True(t, types.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessingFromPending(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payouts"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "pending"))
	mock.ExpectExec(`UPDATE "payouts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.MarkProcessing(mustUUID(payoutID))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayoutRefusesFailed(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payouts"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "failed"))
	mock.ExpectRollback()

	err := svc.CompletePayout(mustUUID(payoutID), nil)
	assert.True(t, types.IsState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelPayoutRequiresOwnership(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"

	// The payout belongs to seller 999; seller 7's cancel reads as not
	// found and nothing transitions.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payouts"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}))
	mock.ExpectRollback()

	err := svc.CancelPayout(7, mustUUID(payoutID))
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelPayoutByOwner(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "payouts"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "pending"))
	mock.ExpectExec(`UPDATE "payouts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Recovery runs after the transition; no earnings are linked here.
	mock.ExpectQuery(`SELECT (.+) FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "cancelled"))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := svc.CancelPayout(7, mustUUID(payoutID))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverPayoutWrongState(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"

	mock.ExpectQuery(`SELECT (.+) FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "pending"))

	err := svc.RecoverPayout(mustUUID(payoutID))
	assert.True(t, types.IsState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverPayoutClonesEarnings(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"
	earningID := "0a4f6f9e-1b2c-4d5e-8f90-112233445566"
	orderID := "3f1a9c2e-8d7b-4e6f-a1b2-c3d4e5f6a7b8"

	mock.ExpectQuery(`SELECT (.+) FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "failed"))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "listing_ticket_id", "order_id", "seller_amount", "currency", "status", "payout_id"}).
			AddRow(earningID, 7, 11, orderID, "500.00", "UYU", "paid_out", payoutID))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "listing_ticket_id", "order_id", "seller_amount", "currency", "status", "payout_id"}).
			AddRow(earningID, 7, 11, orderID, "500.00", "UYU", "paid_out", payoutID))
	mock.ExpectExec(`UPDATE "seller_earnings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("4d7c9e2f-4e5f-4081-bc23-445566778899"))
	mock.ExpectCommit()

	err := svc.RecoverPayout(mustUUID(payoutID))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverPayoutIsIdempotent(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()
	payoutID := "2c6b8d1e-3d4e-4f70-ab12-334455667788"
	earningID := "0a4f6f9e-1b2c-4d5e-8f90-112233445566"
	cloneID := "4d7c9e2f-4e5f-4081-bc23-445566778899"
	orderID := "3f1a9c2e-8d7b-4e6f-a1b2-c3d4e5f6a7b8"

	mock.ExpectQuery(`SELECT (.+) FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "status"}).
			AddRow(payoutID, 7, "failed"))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "listing_ticket_id", "order_id", "seller_amount", "currency", "status", "payout_id"}).
			AddRow(earningID, 7, 11, orderID, "500.00", "UYU", "failed_payout", payoutID))

	// The original is already flagged and its clone exists, so the second
	// run writes nothing.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"(.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "listing_ticket_id", "order_id", "seller_amount", "currency", "status", "payout_id"}).
			AddRow(earningID, 7, 11, orderID, "500.00", "UYU", "failed_payout", payoutID))
	mock.ExpectQuery(`SELECT (.+) FROM "seller_earnings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_user_id", "listing_ticket_id", "seller_amount", "currency", "status"}).
			AddRow(cloneID, 7, 11, "500.00", "UYU", "available"))
	mock.ExpectCommit()

	err := svc.RecoverPayout(mustUUID(payoutID))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayoutMethodMetadataMismatch(t *testing.T) {
	svc := newTestPayoutService()
	_, err := svc.CreatePayoutMethod(7, types.CreatePayoutMethodRequestBody{
		Type:     types.PAYOUT_METHOD_BANK_ACCOUNT,
		Currency: "UYU",
		Metadata: types.PayoutMethodMetadata{
			Type:   types.PAYOUT_METHOD_PAYPAL,
			PayPal: &types.PayPalMetadata{Email: "seller@example.com"},
		},
	})
	assert.True(t, types.IsValidation(err))
}

func TestCreatePayoutMethodIncompleteMetadata(t *testing.T) {
	svc := newTestPayoutService()
	_, err := svc.CreatePayoutMethod(7, types.CreatePayoutMethodRequestBody{
		Type:     types.PAYOUT_METHOD_BANK_ACCOUNT,
		Currency: "UYU",
		Metadata: types.PayoutMethodMetadata{
			Type:        types.PAYOUT_METHOD_BANK_ACCOUNT,
			BankAccount: &types.UruguayanBankMetadata{BankName: "BROU"},
		},
	})
	assert.True(t, types.IsValidation(err))
}

func TestCreatePayoutMethodDefaultClearsPrevious(t *testing.T) {
	_, mock := testutil.SetupMockDB()
	svc := newTestPayoutService()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payout_methods" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "payout_methods"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	method, err := svc.CreatePayoutMethod(7, types.CreatePayoutMethodRequestBody{
		Type:      types.PAYOUT_METHOD_BANK_ACCOUNT,
		Currency:  "UYU",
		IsDefault: true,
		Metadata: types.PayoutMethodMetadata{
			Type: types.PAYOUT_METHOD_BANK_ACCOUNT,
			BankAccount: &types.UruguayanBankMetadata{
				BankName:      "BROU",
				AccountNumber: "001234567",
				AccountHolder: "Ana Perez",
			},
		},
	})
	assert.NoError(t, err)
	assert.True(t, method.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}
