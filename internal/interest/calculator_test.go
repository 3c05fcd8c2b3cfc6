package interest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return &d
}

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator(time.UTC)
	rate := decimal.RequireFromString("6.5")

	tests := []struct {
		name      string
		principal int64
		rate      decimal.Decimal
		base      string
		end       string
		want      int64
	}{
		{"two midnights crossed", 1_000_000, rate, "2025-01-11", "2025-01-13", 356},
		{"ten days on one hundred million", 100_000_000, rate, "2025-03-01", "2025-03-11", 178_082},
		{"same day", 5_000_000, rate, "2025-01-11", "2025-01-11", 0},
		{"base after end", 5_000_000, rate, "2025-02-01", "2025-01-11", 0},
		{"zero principal", 0, rate, "2025-01-01", "2025-12-31", 0},
		{"negative principal", -10, rate, "2025-01-01", "2025-12-31", 0},
		{"zero rate", 1_000_000, decimal.Zero, "2025-01-01", "2025-12-31", 0},
		{"full year", 1_000_000, rate, "2025-01-01", "2026-01-01", 65_000},
		{"rounds half up", 80_300, decimal.RequireFromString("2.5"), "2025-01-01", "2025-01-02", 6},
		{"rounds down below half", 80_299, decimal.RequireFromString("2.5"), "2025-01-01", "2025-01-02", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.principal, tt.rate, date(t, tt.base), *date(t, tt.end))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculator_NilBaseDate(t *testing.T) {
	calc := NewCalculator(nil)
	assert.Equal(t, int64(0), calc.Calculate(1_000_000, DefaultRate, nil, time.Now()))
}

func TestCalculator_IgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	calc := NewCalculator(loc)

	base := time.Date(2025, 1, 11, 23, 59, 0, 0, loc)
	end := time.Date(2025, 1, 13, 0, 1, 0, 0, loc)
	assert.Equal(t, int64(2), calc.Days(base, end))
	assert.Equal(t, int64(356), calc.Calculate(1_000_000, DefaultRate, &base, end))

	// 2025-01-12 18:00 UTC is already 2025-01-13 in ICT
	endUTC := time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(2), calc.Days(base, endUTC))
}

func TestCalculator_Monotonic(t *testing.T) {
	calc := NewCalculator(time.UTC)
	base := date(t, "2024-06-15")
	rate := decimal.RequireFromString("7.25")

	prev := int64(0)
	for i := 0; i < 800; i++ {
		end := base.AddDate(0, 0, i)
		got := calc.Calculate(123_456_789, rate, base, end)
		assert.GreaterOrEqual(t, got, prev, "day %d", i)
		prev = got
	}
}

func TestCalculator_ZeroDayRule(t *testing.T) {
	calc := NewCalculator(time.UTC)
	for _, principal := range []int64{1, 999, 1_000_000, 9_000_000_000} {
		d := date(t, "2025-07-04")
		assert.Equal(t, int64(0), calc.Calculate(principal, DefaultRate, d, *d))
	}
}

func TestCalculator_Accrue(t *testing.T) {
	calc := NewCalculator(time.UTC)
	rate := decimal.RequireFromString("6.5")
	base := date(t, "2025-03-01")
	now := *date(t, "2025-03-21")

	pending := calc.Accrue(100_000_000, rate, base, nil, now)
	assert.False(t, pending.Frozen)
	assert.Equal(t, int64(20), pending.Days)
	assert.Equal(t, calc.Calculate(100_000_000, rate, base, now), pending.Interest)

	disbursed := calc.Accrue(100_000_000, rate, base, date(t, "2025-03-11"), now)
	assert.True(t, disbursed.Frozen)
	assert.Equal(t, int64(10), disbursed.Days)
	assert.Equal(t, int64(178_082), disbursed.Interest)

	later := calc.Accrue(100_000_000, rate, base, date(t, "2025-03-11"), now.AddDate(1, 0, 0))
	assert.Equal(t, disbursed.Interest, later.Interest, "settled interest does not move")

	none := calc.Accrue(100_000_000, rate, nil, nil, now)
	assert.Zero(t, none.Days)
	assert.Zero(t, none.Interest)
}
