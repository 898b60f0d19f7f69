package utils

import (
	"regexp"
	"strings"
)

// priceRegex finds the first run of digits (with optional thousands
// separators) in a price label like "¥128,000（税込）".
var priceRegex = regexp.MustCompile(`[\d,]+`)

// ExtractPrice pulls the numeric part out of a listing price label and strips
// the thousands separators. When no digits are present it returns "0", which
// callers treat as an invalid price.
func ExtractPrice(priceText string) string {
	found := priceRegex.FindString(priceText)
	if found == "" {
		return "0"
	}
	return strings.ReplaceAll(found, ",", "")
}

// Truncate shortens s to at most n runes for log output, appending an
// ellipsis when something was cut. Item names on the listing are long.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
