package packmarket

import "time"

// MonthKey is the persisted representation of a billing month (YYYY-MM).
type MonthKey string

// NewMonthKey validates and normalizes a month string.
func NewMonthKey(value string) (MonthKey, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return "", ErrInvalidMonth
	}
	return MonthKey(t.Format("2006-01")), nil
}

// MonthKeyOf builds the key for the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.UTC().Format("2006-01"))
}

// String returns the raw string for storage.
func (k MonthKey) String() string { return string(k) }
