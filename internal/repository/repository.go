package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

const cardColumns = `id, employee_id, number, cardholder_name, security_code, expiration_date,
		password, is_virtual, original_card_id, is_blocked, type`

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindEmployeeByID retrieves an employee by id
func (r *Repository) FindEmployeeByID(ctx context.Context, id int64) (*models.Employee, error) {
	employee := &models.Employee{}
	query := `
		SELECT id, full_name, email
		FROM employees
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&employee.ID, &employee.FullName, &employee.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employee: %w", err)
	}
	return employee, nil
}

// FindCardByID retrieves a card by id
func (r *Repository) FindCardByID(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// FindCardByEmployeeAndType retrieves the physical card of the given type held by an employee
func (r *Repository) FindCardByEmployeeAndType(ctx context.Context, employeeID int64, cardType models.CardType) (*models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE employee_id = $1 AND type = $2 AND NOT is_virtual`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, employeeID, string(cardType)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card by type: %w", err)
	}
	return card, nil
}

// InsertCard creates a new card and returns its id
func (r *Repository) InsertCard(ctx context.Context, card *models.Card) (int64, error) {
	query := `
		INSERT INTO cards (employee_id, number, cardholder_name, security_code, expiration_date,
			password, is_virtual, original_card_id, is_blocked, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		card.EmployeeID,
		card.Number,
		card.CardholderName,
		card.SecurityCode,
		card.ExpirationDate,
		nullString(card.Password),
		card.IsVirtual,
		nullInt64(card.OriginalCardID),
		card.IsBlocked,
		string(card.Type),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		}
		return 0, fmt.Errorf("failed to insert card: %w", err)
	}
	return id, nil
}

// UpdateCard overwrites the mutable state of a card
func (r *Repository) UpdateCard(ctx context.Context, id int64, card *models.Card) error {
	query := `
		UPDATE cards
		SET password = $1, is_blocked = $2
		WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, nullString(card.Password), card.IsBlocked, id)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return expectRow(res)
}

// DeleteCard removes a card row
func (r *Repository) DeleteCard(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return expectRow(res)
}

// ListPayments retrieves every payment recorded against a card
func (r *Repository) ListPayments(ctx context.Context, cardID int64) ([]models.Payment, error) {
	query := `
		SELECT id, card_id, business_id, amount, timestamp
		FROM payments
		WHERE card_id = $1`
	rows, err := r.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.CardID, &p.BusinessID, &p.Amount, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ListRecharges retrieves every recharge recorded against a card
func (r *Repository) ListRecharges(ctx context.Context, cardID int64) ([]models.Recharge, error) {
	query := `
		SELECT id, card_id, amount, timestamp
		FROM recharges
		WHERE card_id = $1`
	rows, err := r.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recharges: %w", err)
	}
	defer rows.Close()

	recharges := []models.Recharge{}
	for rows.Next() {
		var rc models.Recharge
		if err := rows.Scan(&rc.ID, &rc.CardID, &rc.Amount, &rc.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan recharge: %w", err)
		}
		recharges = append(recharges, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recharges: %w", err)
	}
	return recharges, nil
}

// ListPhysicalCardsExpiringBetween retrieves physical cards with from <= expiration_date < to
func (r *Repository) ListPhysicalCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE NOT is_virtual AND expiration_date >= $1 AND expiration_date < $2
		ORDER BY expiration_date`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expiring cards: %w", err)
	}
	return cards, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var (
		card     models.Card
		password sql.NullString
		original sql.NullInt64
		cardType string
	)
	err := row.Scan(
		&card.ID,
		&card.EmployeeID,
		&card.Number,
		&card.CardholderName,
		&card.SecurityCode,
		&card.ExpirationDate,
		&password,
		&card.IsVirtual,
		&original,
		&card.IsBlocked,
		&cardType,
	)
	if err != nil {
		return nil, err
	}
	if password.Valid {
		card.Password = &password.String
	}
	if original.Valid {
		card.OriginalCardID = &original.Int64
	}
	card.Type = models.CardType(cardType)
	return &card, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
