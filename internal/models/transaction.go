package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents a purchase charged against a card ledger
type Payment struct {
	ID         int64           `json:"id"`
	CardID     int64           `json:"card_id"`
	BusinessID int64           `json:"business_id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Recharge represents funds credited to a card ledger
type Recharge struct {
	ID        int64           `json:"id"`
	CardID    int64           `json:"card_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// CardBalance is the net balance of a card ledger together with its raw records
type CardBalance struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Payment       `json:"transactions"`
	Recharges    []Recharge      `json:"recharges"`
}
