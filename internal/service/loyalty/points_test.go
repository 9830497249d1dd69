package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculatePoints(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		want   int64
	}{
		{"default rate", "1000", "0.01", 10},
		{"floors fractional points", "150", "0.01", 1},
		{"below one point", "99", "0.01", 0},
		{"zero amount", "0", "0.01", 0},
		{"negative amount", "-500", "0.01", 0},
		{"zero rate", "1000", "0", 0},
		{"one point per shilling", "250", "1", 250},
		{"cents do not round up", "199.99", "0.01", 1},
		{"exact decimal product", "30", "0.1", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePoints(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.rate))
			if got != tt.want {
				t.Fatalf("CalculatePoints(%s, %s) = %d, want %d", tt.amount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestCalculatePointsMonotonic(t *testing.T) {
	rate := decimal.RequireFromString("0.03")
	prev := int64(0)
	for i := 0; i <= 2000; i += 7 {
		got := CalculatePoints(decimal.NewFromInt(int64(i)), rate)
		if got < prev {
			t.Fatalf("points decreased at amount %d: %d < %d", i, got, prev)
		}
		prev = got
	}
}

func TestShouldIssueReward(t *testing.T) {
	tests := []struct {
		name          string
		balance       int64
		threshold     int64
		hasUnredeemed bool
		want          bool
	}{
		{"below threshold", 99, 100, false, false},
		{"at threshold", 100, 100, false, true},
		{"above threshold", 250, 100, false, true},
		{"already holds reward", 250, 100, true, false},
		{"disabled threshold", 500, 0, false, false},
		{"negative threshold", 500, -1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldIssueReward(tt.balance, tt.threshold, tt.hasUnredeemed); got != tt.want {
				t.Fatalf("ShouldIssueReward(%d, %d, %v) = %v, want %v", tt.balance, tt.threshold, tt.hasUnredeemed, got, tt.want)
			}
		})
	}
}

func TestPointsAfterRedemption(t *testing.T) {
	tests := []struct {
		balance, threshold     int64
		wantBalance, wantTaken int64
	}{
		{150, 100, 50, 100},
		{100, 100, 0, 100},
		{40, 100, 0, 40},
		{40, 0, 40, 0},
	}

	for _, tt := range tests {
		gotBalance, gotTaken := PointsAfterRedemption(tt.balance, tt.threshold)
		if gotBalance != tt.wantBalance || gotTaken != tt.wantTaken {
			t.Fatalf("PointsAfterRedemption(%d, %d) = (%d, %d), want (%d, %d)",
				tt.balance, tt.threshold, gotBalance, gotTaken, tt.wantBalance, tt.wantTaken)
		}
	}
}
