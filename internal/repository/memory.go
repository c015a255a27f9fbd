package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// Memory is an in-process store with the same behaviour as Repository.
// It backs local development (STORAGE_DRIVER=memory) and tests.
type Memory struct {
	mu        sync.RWMutex
	nextID    int64
	cards     map[int64]models.Card
	employees map[int64]models.Employee
	payments  []models.Payment
	recharges []models.Recharge
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		cards:     make(map[int64]models.Card),
		employees: make(map[int64]models.Employee),
	}
}

// AddEmployee registers an employee in the directory
func (m *Memory) AddEmployee(e models.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

// AddPayment appends a payment to the ledger
func (m *Memory) AddPayment(p models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
}

// AddRecharge appends a recharge to the ledger
func (m *Memory) AddRecharge(r models.Recharge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recharges = append(m.recharges, r)
}

// FindEmployeeByID retrieves an employee by id
func (m *Memory) FindEmployeeByID(ctx context.Context, id int64) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// FindCardByID retrieves a copy of a card by id
func (m *Memory) FindCardByID(ctx context.Context, id int64) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCard(c), nil
}

// FindCardByEmployeeAndType retrieves the physical card of the given type held by an employee
func (m *Memory) FindCardByEmployeeAndType(ctx context.Context, employeeID int64, cardType models.CardType) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cards {
		if c.EmployeeID == employeeID && c.Type == cardType && !c.IsVirtual {
			return copyCard(c), nil
		}
	}
	return nil, ErrNotFound
}

// InsertCard stores a card under the next id; a second physical card per (employee, type) is ErrDuplicate
func (m *Memory) InsertCard(ctx context.Context, card *models.Card) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !card.IsVirtual {
		for _, c := range m.cards {
			if c.EmployeeID == card.EmployeeID && c.Type == card.Type && !c.IsVirtual {
				return 0, ErrDuplicate
			}
		}
	}
	m.nextID++
	stored := *copyCard(*card)
	stored.ID = m.nextID
	m.cards[stored.ID] = stored
	return stored.ID, nil
}

// UpdateCard overwrites the password and block state of a card
func (m *Memory) UpdateCard(ctx context.Context, id int64, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cards[id]
	if !ok {
		return ErrNotFound
	}
	updated := copyCard(*card)
	stored.Password = updated.Password
	stored.IsBlocked = updated.IsBlocked
	m.cards[id] = stored
	return nil
}

// DeleteCard removes a card
func (m *Memory) DeleteCard(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

// ListPayments retrieves every payment recorded against a card
func (m *Memory) ListPayments(ctx context.Context, cardID int64) ([]models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Payment{}
	for _, p := range m.payments {
		if p.CardID == cardID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListRecharges retrieves every recharge recorded against a card
func (m *Memory) ListRecharges(ctx context.Context, cardID int64) ([]models.Recharge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Recharge{}
	for _, r := range m.recharges {
		if r.CardID == cardID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListPhysicalCardsExpiringBetween retrieves physical cards with from <= expiration < to, soonest first
func (m *Memory) ListPhysicalCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Card{}
	for _, c := range m.cards {
		if c.IsVirtual || c.ExpirationDate.Before(from) || !c.ExpirationDate.Before(to) {
			continue
		}
		out = append(out, *copyCard(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpirationDate.Before(out[j].ExpirationDate) })
	return out, nil
}

// copyCard detaches the pointer fields so callers never alias stored state
func copyCard(c models.Card) *models.Card {
	out := c
	if c.Password != nil {
		p := *c.Password
		out.Password = &p
	}
	if c.OriginalCardID != nil {
		id := *c.OriginalCardID
		out.OriginalCardID = &id
	}
	return &out
}
