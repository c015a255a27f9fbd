package service

import (
	"github.com/Dan9191/card-service/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeBalance returns the sum of recharges minus the sum of payments
func ComputeBalance(payments []models.Payment, recharges []models.Recharge) decimal.Decimal {
	balance := decimal.Zero
	for _, r := range recharges {
		balance = balance.Add(r.Amount)
	}
	for _, p := range payments {
		balance = balance.Sub(p.Amount)
	}
	return balance
}
