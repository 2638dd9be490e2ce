package domain

import "fmt"

// Money is an amount in minor currency units (paise, cents).
type Money int64

func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, int64(m)/100, int64(m)%100)
}

// Percent returns pct% of m, rounded down.
func (m Money) Percent(pct int) Money {
	return m * Money(pct) / 100
}
