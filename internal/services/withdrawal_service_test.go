package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/agentpay/backoffice/internal/models"
)

func newWithdrawalService(t *testing.T) (*WithdrawalService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	log := newTestLogger()
	ledger := NewLedgerService(db, log)
	service := NewWithdrawalService(db, ledger, log)
	return service, mock, func() { db.Close() }
}

func expectLockedWithdrawal(mock sqlmock.Sqlmock, id, status string) {
	mock.ExpectQuery("FROM withdrawal_requests WHERE id::text").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "created_by_user_id", "amount", "currency", "status"}).
			AddRow(id, "user-1", "50.00", "CNY", status))
}

func expectEnsureAccount(mock sqlmock.Sqlmock, name, accountID string) {
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id::text FROM accounts").
		WithArgs("user-1", "CNY", name).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(accountID))
}

func TestWithdrawalService_Freeze(t *testing.T) {
	t.Run("freezes a requested withdrawal", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Requested")
		expectEnsureAccount(mock, models.AccountMain, "acc-main")
		expectEnsureAccount(mock, models.AccountFrozen, "acc-frozen")
		mock.ExpectQuery("FROM ledger_entries WHERE account_id::text").
			WithArgs("acc-main").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("120.00"))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE withdrawal_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.Freeze(context.Background(), "wd-1", "reviewer-1", "looks fine")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeFrozen, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance is skipped and rolled back", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Requested")
		expectEnsureAccount(mock, models.AccountMain, "acc-main")
		expectEnsureAccount(mock, models.AccountFrozen, "acc-frozen")
		mock.ExpectQuery("FROM ledger_entries WHERE account_id::text").
			WithArgs("acc-main").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("10.00"))
		mock.ExpectRollback()

		out, err := service.Freeze(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.Contains(t, out.Reason, "insufficient balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("double freeze is skipped", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Frozen")
		mock.ExpectRollback()

		out, err := service.Freeze(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing request is an error", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM withdrawal_requests WHERE id::text").
			WithArgs("wd-404").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "created_by_user_id", "amount", "currency", "status"}))
		mock.ExpectRollback()

		_, err := service.Freeze(context.Background(), "wd-404", "reviewer-1", "")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalService_Approve(t *testing.T) {
	t.Run("approves a frozen withdrawal without moving funds", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Frozen")
		mock.ExpectExec("UPDATE withdrawal_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.Approve(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeApproved, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approving an unfrozen request is skipped", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Requested")
		mock.ExpectRollback()

		out, err := service.Approve(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.Contains(t, out.Reason, "Requested")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalService_Reject(t *testing.T) {
	t.Run("rejecting a requested withdrawal is a pure status change", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Requested")
		mock.ExpectExec("UPDATE withdrawal_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.Reject(context.Background(), "wd-1", "reviewer-1", "not eligible")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeRejected, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejecting a frozen withdrawal returns the reserved funds", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Frozen")
		expectEnsureAccount(mock, models.AccountMain, "acc-main")
		expectEnsureAccount(mock, models.AccountFrozen, "acc-frozen")
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE withdrawal_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.Reject(context.Background(), "wd-1", "reviewer-1", "mismatch")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeRejected, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejecting a paid withdrawal is skipped", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Paid")
		mock.ExpectRollback()

		out, err := service.Reject(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalService_Payout(t *testing.T) {
	t.Run("pays out an approved withdrawal", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Approved")
		expectEnsureAccount(mock, models.AccountFrozen, "acc-frozen")
		mock.ExpectQuery("FROM ledger_entries WHERE account_id::text").
			WithArgs("acc-frozen").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("50.00"))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE withdrawal_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := service.Payout(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomePaid, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("drained frozen account is skipped", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Approved")
		expectEnsureAccount(mock, models.AccountFrozen, "acc-frozen")
		mock.ExpectQuery("FROM ledger_entries WHERE account_id::text").
			WithArgs("acc-frozen").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))
		mock.ExpectRollback()

		out, err := service.Payout(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.Contains(t, out.Reason, "insufficient frozen balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second payout is skipped", func(t *testing.T) {
		service, mock, done := newWithdrawalService(t)
		defer done()

		mock.ExpectBegin()
		expectLockedWithdrawal(mock, "wd-1", "Paid")
		mock.ExpectRollback()

		out, err := service.Payout(context.Background(), "wd-1", "reviewer-1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.Contains(t, out.Reason, "Paid")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
