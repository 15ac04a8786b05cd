package currency

import (
	"fmt"
	"math"
	"strings"
)

func FormatUSD(amount float64) string {
	return Format(amount, "USD")
}

// Format renders amount with two decimals and comma thousands separators,
// e.g. "USD 1,234.50".
func Format(amount float64, code string) string {
	cents := math.Round(amount * 100)

	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := math.Floor(cents / 100)
	frac := int64(cents) % 100

	intStr := fmt.Sprintf("%.0f", whole)
	formatted := addThousandsSeparator(intStr, ",") + fmt.Sprintf(".%02d", frac)

	if code == "" {
		code = "USD"
	}
	result := strings.ToUpper(code) + " " + formatted
	if negative {
		result = "-" + result
	}

	return result
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
