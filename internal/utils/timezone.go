package utils

import (
	"fmt"
	"time"
)

// LoadLocation falls back to UTC for unknown zones.
func LoadLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return time.UTC
	}
	return loc
}

func FormatInTimezone(t time.Time, tz string, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(LoadLocation(tz)).Format(layout)
}

// FormatMoney renders an amount with two decimals and thousands separators.
func FormatMoney(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return fmt.Sprintf("%s%s.%02d", sign, out, frac)
}
