package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cardRowColumns = []string{
	"id", "employee_id", "number", "cardholder_name", "security_code", "expiration_date",
	"password", "is_virtual", "original_card_id", "is_blocked", "type",
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepository(db), mock
}

func TestFindEmployeeByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM employees").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email"}).
			AddRow(int64(1), "Ana Maria Souza", "ana@example.com"))

	employee, err := repo.FindEmployeeByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria Souza", employee.FullName)
	assert.Equal(t, "ana@example.com", employee.Email)
}

func TestFindEmployeeByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM employees").
		WithArgs(int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindEmployeeByID(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindCardByID_ScansNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Date(2030, time.May, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM cards WHERE id = ").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cardRowColumns).
			AddRow(int64(3), int64(1), "5067000000000009", "ANA SOUZA", "enc", exp, nil, false, nil, false, "health"))

	card, err := repo.FindCardByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, card.Password)
	assert.Nil(t, card.OriginalCardID)
	assert.Equal(t, models.CardTypeHealth, card.Type)
	assert.Equal(t, exp, card.ExpirationDate)
}

func TestFindCardByID_Virtual(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Date(2030, time.May, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM cards WHERE id = ").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(cardRowColumns).
			AddRow(int64(4), int64(1), "5067000000000017", "ANA SOUZA", "enc", exp, "hash", true, int64(3), false, "health"))

	card, err := repo.FindCardByID(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, card.Password)
	assert.Equal(t, "hash", *card.Password)
	require.NotNil(t, card.OriginalCardID)
	assert.Equal(t, int64(3), *card.OriginalCardID)
	assert.Equal(t, int64(3), card.LedgerID())
}

func TestFindCardByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM cards WHERE id = ").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCardByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindCardByEmployeeAndType(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("NOT is_virtual").
		WithArgs(int64(1), "transport").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCardByEmployeeAndType(context.Background(), 1, models.CardTypeTransport)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertCard(t *testing.T) {
	repo, mock := newMockRepo(t)
	card := &models.Card{
		EmployeeID:     1,
		Number:         "5067000000000009",
		CardholderName: "ANA SOUZA",
		SecurityCode:   "enc",
		ExpirationDate: time.Date(2030, time.May, 1, 0, 0, 0, 0, time.UTC),
		Type:           models.CardTypeGroceries,
	}

	mock.ExpectQuery("INSERT INTO cards").
		WithArgs(card.EmployeeID, card.Number, card.CardholderName, card.SecurityCode, card.ExpirationDate,
			nil, false, nil, false, "groceries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))

	id, err := repo.InsertCard(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
}

func TestInsertCard_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO cards").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "cards_employee_type_physical_key"})

	_, err := repo.InsertCard(context.Background(), &models.Card{Type: models.CardTypeHealth})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateCard(t *testing.T) {
	repo, mock := newMockRepo(t)
	hash := "hash"

	mock.ExpectExec("UPDATE cards").
		WithArgs("hash", true, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCard(context.Background(), 5, &models.Card{Password: &hash, IsBlocked: true})
	assert.NoError(t, err)
}

func TestUpdateCard_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE cards").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCard(context.Background(), 5, &models.Card{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCard(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM cards").
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.DeleteCard(context.Background(), 6))
}

func TestListPaymentsAndRecharges(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM payments").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "business_id", "amount", "timestamp"}).
			AddRow(int64(1), int64(3), int64(8), "12.50", ts).
			AddRow(int64(2), int64(3), int64(9), "7.25", ts))
	mock.ExpectQuery("FROM recharges").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "amount", "timestamp"}).
			AddRow(int64(1), int64(3), "100", ts))

	payments, err := repo.ListPayments(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.True(t, decimal.RequireFromString("12.50").Equal(payments[0].Amount))
	assert.Equal(t, int64(9), payments[1].BusinessID)

	recharges, err := repo.ListRecharges(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recharges, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(recharges[0].Amount))
}

func TestListPayments_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM payments").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "business_id", "amount", "timestamp"}))

	payments, err := repo.ListPayments(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, payments)
	assert.Empty(t, payments)
}

func TestListPhysicalCardsExpiringBetween(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := time.Date(2029, time.May, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)

	mock.ExpectQuery("expiration_date >= ").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(cardRowColumns).
			AddRow(int64(3), int64(1), "5067000000000009", "ANA SOUZA", "enc", from.AddDate(0, 0, 2), "hash", false, nil, false, "health"))

	cards, err := repo.ListPhysicalCardsExpiringBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, int64(3), cards[0].ID)
}
