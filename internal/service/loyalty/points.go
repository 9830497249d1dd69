// internal/service/loyalty/points.go
package loyalty

import "github.com/shopspring/decimal"

// CalculatePoints returns floor(amount * rate). Non-positive inputs earn nothing.
func CalculatePoints(amount, rate decimal.Decimal) int64 {
	if !amount.IsPositive() || !rate.IsPositive() {
		return 0
	}
	return amount.Mul(rate).Floor().IntPart()
}

// ShouldIssueReward reports whether a balance earns a new reward. A customer
// holds at most one unredeemed reward per business, and a non-positive
// threshold disables rewards.
func ShouldIssueReward(balance, threshold int64, hasUnredeemed bool) bool {
	if threshold <= 0 || hasUnredeemed {
		return false
	}
	return balance >= threshold
}

// PointsAfterRedemption deducts threshold from balance, never going below zero.
func PointsAfterRedemption(balance, threshold int64) (newBalance, deducted int64) {
	if threshold <= 0 {
		return balance, 0
	}
	if threshold > balance {
		return 0, balance
	}
	return balance - threshold, threshold
}
