package models

import "time"

// CardType is the expense category a card is restricted to
type CardType string

const (
	CardTypeGroceries  CardType = "groceries"
	CardTypeRestaurant CardType = "restaurant"
	CardTypeTransport  CardType = "transport"
	CardTypeEducation  CardType = "education"
	CardTypeHealth     CardType = "health"
	CardTypeTravel     CardType = "travel"
)

// Valid reports whether t is one of the supported expense categories
func (t CardType) Valid() bool {
	switch t {
	case CardTypeGroceries, CardTypeRestaurant, CardTypeTransport, CardTypeEducation, CardTypeHealth, CardTypeTravel:
		return true
	}
	return false
}

// Card represents a corporate expense card
type Card struct {
	ID             int64     `json:"id"`
	EmployeeID     int64     `json:"employee_id"`
	Number         string    `json:"number"`
	CardholderName string    `json:"cardholder_name"`
	SecurityCode   string    `json:"security_code"` // Encrypted at rest, decrypted for response
	ExpirationDate time.Time `json:"expiration_date"`
	Password       *string   `json:"-"` // bcrypt hash, nil until activation
	IsVirtual      bool      `json:"is_virtual"`
	OriginalCardID *int64    `json:"original_card_id"`
	IsBlocked      bool      `json:"is_blocked"`
	Type           CardType  `json:"type"`
}

// IsActivated reports whether a password has been set
func (c *Card) IsActivated() bool {
	return c.Password != nil
}

// IsExpired reports whether the card expiration is not after now
func (c *Card) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpirationDate)
}

// LedgerID returns the id payments and recharges are recorded against.
// Virtual cards share the ledger of the physical card they were derived from.
func (c *Card) LedgerID() int64 {
	if c.IsVirtual && c.OriginalCardID != nil {
		return *c.OriginalCardID
	}
	return c.ID
}

// LastFour returns the last four digits of the card number
func (c *Card) LastFour() string {
	if len(c.Number) <= 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}
