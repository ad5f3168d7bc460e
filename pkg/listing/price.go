package listing

import (
	"strconv"
	"strings"
)

// ParsePrice extracts the numeric amount from a formatted price such as
// "CHF 1'250.–" or "CHF 20.50". Thousands separators (', ’ and ,) are dropped
// and a trailing decimal point left by a ".–" suffix is ignored.
func ParsePrice(formatted string) (float64, bool) {
	var b strings.Builder
	for _, r := range formatted {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimRight(b.String(), ".")
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
