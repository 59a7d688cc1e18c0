package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/agentpay/backoffice/internal/models"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestLedgerService_EnsureAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, newTestLogger())

	t.Run("creates and resolves account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id::text FROM accounts").
			WithArgs("user-1", "CNY", models.AccountMain).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))

		id, err := service.EnsureAccount(context.Background(), db, "user-1", "CNY", models.AccountMain)
		assert.NoError(t, err)
		assert.Equal(t, "acc-1", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resolves existing account after conflict no-op", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id::text FROM accounts").
			WithArgs("user-1", "CNY", models.AccountFrozen).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-2"))

		id, err := service.EnsureAccount(context.Background(), db, "user-1", "CNY", models.AccountFrozen)
		assert.NoError(t, err)
		assert.Equal(t, "acc-2", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Balance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, newTestLogger())

	mock.ExpectQuery("FROM ledger_entries WHERE account_id::text").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("150.25"))

	balance, err := service.Balance(context.Background(), db, "acc-1")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("150.25")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_AppendEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, newTestLogger())

	params := AppendEntryParams{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("100.00"),
		EntryType: models.EntryDeposit,
		RefType:   models.RefDepositOrder,
		RefID:     "order-1",
		Memo:      "credit for deposit order order-1",
	}

	t.Run("posts entry", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := service.AppendEntry(context.Background(), db, params)
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate business event maps to conflict", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := service.AppendEntry(context.Background(), db, params)
		assert.True(t, errors.Is(err, ErrConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_HasEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, newTestLogger())

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(models.RefDepositOrder, "order-1", string(models.EntryDeposit)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := service.HasEntry(context.Background(), db, models.RefDepositOrder, "order-1", models.EntryDeposit)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_BalancesForOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, newTestLogger())

	mock.ExpectQuery("LEFT JOIN ledger_entries").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "currency", "name", "balance"}).
			AddRow("acc-1", "CNY", "frozen", "50.00").
			AddRow("acc-2", "CNY", "main", "150.00"))

	balances, err := service.BalancesForOwner(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Len(t, balances, 2)
	assert.Equal(t, "main", balances[1].Name)
	assert.True(t, balances[1].Balance.Equal(decimal.RequireFromString("150.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
