package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/payments"
)

func newDepositService(t *testing.T) (*DepositService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	log := newTestLogger()
	ledger := NewLedgerService(db, log)
	service := NewDepositService(db, ledger, nil, log)
	return service, mock, func() { db.Close() }
}

func TestDepositService_CreditPaidOrder(t *testing.T) {
	t.Run("credits a paid order", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders WHERE id::text").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "created_by_user_id", "amount", "currency", "status"}).
				AddRow("order-1", "user-1", "100.00", "CNY", "Paid"))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id::text FROM accounts").
			WithArgs("user-1", "CNY", models.AccountMain).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE deposit_orders SET status = 'Credited'").
			WithArgs("order-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.CreditPaidOrder(context.Background(), "order-1")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeCredited, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replay reports alreadyCredited without a second entry", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders WHERE id::text").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "created_by_user_id", "amount", "currency", "status"}).
				AddRow("order-1", "user-1", "100.00", "CNY", "Credited"))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id::text FROM accounts").
			WithArgs("user-1", "CNY", models.AccountMain).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		out, err := service.CreditPaidOrder(context.Background(), "order-1")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyCredited, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips an order that is not paid yet", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders WHERE id::text").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "created_by_user_id", "amount", "currency", "status"}).
				AddRow("order-1", "user-1", "100.00", "CNY", "Created"))
		mock.ExpectRollback()

		out, err := service.CreditPaidOrder(context.Background(), "order-1")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.Contains(t, out.Reason, "Created")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips a missing order", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders WHERE id::text").
			WithArgs("order-404").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		out, err := service.CreditPaidOrder(context.Background(), "order-404")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDepositService_MarkPaidFromNotify(t *testing.T) {
	verified := payments.Notify{
		OutTradeNo: "order-1",
		TradeNo:    "atp-9",
		Amount:     decimal.RequireFromString("100.00"),
		Currency:   "CNY",
		Verified:   true,
	}

	t.Run("verified notification marks order paid", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).
				AddRow("order-1", "100.00", "Created"))
		mock.ExpectExec("UPDATE deposit_orders").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.MarkPaidFromNotify(context.Background(), verified)
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeUpdated, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeat notification is alreadyProcessed", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).
				AddRow("order-1", "100.00", "Paid"))
		mock.ExpectCommit()

		out, err := service.MarkPaidFromNotify(context.Background(), verified)
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyProcessed, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown order is ignored", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders").
			WithArgs("order-404").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectCommit()

		out, err := service.MarkPaidFromNotify(context.Background(), payments.Notify{
			OutTradeNo: "order-404",
			Verified:   true,
		})
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeIgnored, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unverified notification parks a created order", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).
				AddRow("order-1", "100.00", "Created"))
		mock.ExpectExec("UPDATE deposit_orders").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.MarkPaidFromNotify(context.Background(), payments.Notify{
			OutTradeNo: "order-1",
			Amount:     decimal.RequireFromString("100.00"),
			Verified:   false,
			Reason:     "bad signature",
		})
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeIgnored, out.Code)
		assert.Equal(t, "bad signature", out.Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("amount mismatch is ignored", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM deposit_orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).
				AddRow("order-1", "100.00", "Created"))
		mock.ExpectCommit()

		n := verified
		n.Amount = decimal.RequireFromString("99.00")
		out, err := service.MarkPaidFromNotify(context.Background(), n)
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeIgnored, out.Code)
		assert.Equal(t, "amount mismatch", out.Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order reference is ignored without touching the database", func(t *testing.T) {
		service, mock, done := newDepositService(t)
		defer done()

		out, err := service.MarkPaidFromNotify(context.Background(), payments.Notify{Verified: true})
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeIgnored, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
