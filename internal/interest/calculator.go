// Package interest computes simple daily interest on undisbursed compensation.
//
// Interest is never stored. It is derived from (principal, rate, base date,
// end date) on every read, and frozen only by fixing the end date at the
// moment of disbursement.
package interest

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRate is the annual rate in percent used when an organization has
// not configured one yet.
var DefaultRate = decimal.RequireFromString("6.5")

var (
	daysPerYearTimesPercent = decimal.NewFromInt(365 * 100)
	two                     = decimal.NewFromInt(2)
)

// Calculator evaluates interest with whole-day granularity in a fixed
// business time zone.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a Calculator that draws day boundaries in loc.
// A nil loc means UTC.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// Location returns the time zone used for day boundaries.
func (c *Calculator) Location() *time.Location { return c.loc }

// Days counts the midnights crossed between base and end.
func (c *Calculator) Days(base, end time.Time) int64 {
	b := c.midnight(base)
	e := c.midnight(end)
	return int64(e.Sub(b) / (24 * time.Hour))
}

// Calculate returns round_half_up(principal * rate/100/365 * days).
// A nil base date, non-positive principal or rate, or a base date on or
// after the end date yields zero.
func (c *Calculator) Calculate(principal int64, annualRate decimal.Decimal, base *time.Time, end time.Time) int64 {
	if base == nil || principal <= 0 || !annualRate.IsPositive() {
		return 0
	}
	days := c.Days(*base, end)
	if days <= 0 {
		return 0
	}

	// exact numerator, single rounding step on the final quotient
	numerator := decimal.NewFromInt(principal).
		Mul(annualRate).
		Mul(decimal.NewFromInt(days))
	q, r := numerator.QuoRem(daysPerYearTimesPercent, 0)
	if r.Mul(two).GreaterThanOrEqual(daysPerYearTimesPercent) {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q.IntPart()
}

// midnight maps t onto its calendar day in the business zone, expressed in
// UTC so that DST shifts never produce fractional days.
func (c *Calculator) midnight(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Accrual is the interest position of one record at a point in time.
type Accrual struct {
	Base     *time.Time
	End      time.Time
	Days     int64
	Interest int64
	// Frozen is set once the record is disbursed; End is then the
	// disbursement date and the figure never changes.
	Frozen bool
}

// Accrue evaluates a record's interest. A disbursed record (disbursedAt set)
// is settled at its disbursement date; anything else accrues until now.
func (c *Calculator) Accrue(principal int64, annualRate decimal.Decimal, base, disbursedAt *time.Time, now time.Time) Accrual {
	a := Accrual{Base: base, End: now}
	if disbursedAt != nil {
		a.End = *disbursedAt
		a.Frozen = true
	}
	if base != nil {
		if d := c.Days(*base, a.End); d > 0 {
			a.Days = d
		}
	}
	a.Interest = c.Calculate(principal, annualRate, base, a.End)
	return a
}
