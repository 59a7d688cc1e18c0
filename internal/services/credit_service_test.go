package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/agentpay/backoffice/internal/models"
)

func TestCreditService_Decide(t *testing.T) {
	t.Run("approval raises the limit and closes the request", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM credit_limit_requests WHERE id::text").
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"agent_id", "requested_amount", "status"}).
				AddRow("agent-1", "20000.00", "Pending"))
		mock.ExpectExec("INSERT INTO credit_limits").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE credit_limit_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		service := NewCreditService(db, newTestLogger())
		out, err := service.Decide(context.Background(), "req-1", "reviewer-1", true, "ok")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeApproved, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection does not touch the limit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM credit_limit_requests WHERE id::text").
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"agent_id", "requested_amount", "status"}).
				AddRow("agent-1", "20000.00", "Pending"))
		mock.ExpectExec("UPDATE credit_limit_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		service := NewCreditService(db, newTestLogger())
		out, err := service.Decide(context.Background(), "req-1", "reviewer-1", false, "no")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeRejected, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deciding a decided request is skipped", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM credit_limit_requests WHERE id::text").
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"agent_id", "requested_amount", "status"}).
				AddRow("agent-1", "20000.00", "Approved"))
		mock.ExpectRollback()

		service := NewCreditService(db, newTestLogger())
		out, err := service.Decide(context.Background(), "req-1", "reviewer-1", true, "")
		assert.NoError(t, err)
		assert.Equal(t, models.OutcomeSkipped, out.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing request is an error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM credit_limit_requests WHERE id::text").
			WithArgs("req-404").
			WillReturnRows(sqlmock.NewRows([]string{"agent_id", "requested_amount", "status"}))
		mock.ExpectRollback()

		service := NewCreditService(db, newTestLogger())
		_, err = service.Decide(context.Background(), "req-404", "reviewer-1", true, "")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
