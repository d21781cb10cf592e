package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses a duration string like "5m".
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// ParseCell converts a raw cell into a panel value. Empty cells become NaN,
// the never-treated spellings become +Inf.
func ParseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	switch strings.ToLower(s) {
	case "inf", "+inf", "infinity", "never":
		return math.Inf(1)
	case "nan", "na":
		return math.NaN()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return math.NaN()
}

// Numeric safely converts decoded JSON values to float64.
func Numeric(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		return ParseCell(val)
	case nil:
		return math.NaN()
	default:
		return math.NaN()
	}
}
