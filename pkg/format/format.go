// Package format provides human-readable formatting utilities.
package format

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// NumberCompact formats a number in compact notation.
// Example: NumberCompact(1234567) => "1.2M"
func NumberCompact(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Percentage formats a percentage value.
// Example: Percentage(45.678, 1) => "45.7%"
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// Share formats part as a percentage of total, or "n/a" when total is zero.
// Example: Share(250, 1000) => "25.0%"
func Share(part, total int64) string {
	if total == 0 {
		return "n/a"
	}
	return Percentage(float64(part)*100/float64(total), 1)
}

// Seconds formats a position in seconds with millisecond precision.
// Example: Seconds(90.5) => "90.500s"
func Seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64) + "s"
}
