package receipt

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Range bounds an amount in COP base units, inclusive.
type Range struct {
	Min int64
	Max int64
}

// Broad plausibility window for any amount found in free text.
var broadAmountRange = Range{Min: 1_000, Max: 100_000_000}

var amountScanPatterns = []*regexp.Regexp{
	// Symbol-prefixed, possibly grouped: $150.000 / $ 1,500,000.50
	regexp.MustCompile(`\$\s*\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?`),
	// Bare grouped digits: 150.000 / 1.500.000,25
	regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})+(?:,\d{1,2})?\b`),
	// Bare long runs: 150000
	regexp.MustCompile(`\b\d{4,}\b`),
}

var nonAmountChars = regexp.MustCompile(`[^0-9.,]`)

// NormalizeAmount parses a locale-ambiguous numeric string into COP base
// units. Dots and commas can each act as thousands or decimal separator;
// a separator whose trailing group has three digits, or that appears more
// than once, is treated as a thousands separator. When both appear, dots
// group thousands and the last comma marks decimals. The result rounds to
// the nearest integer. The second return is false when the input carries
// no parseable number.
func NormalizeAmount(text string) (int64, bool) {
	cleaned := nonAmountChars.ReplaceAllString(text, "")
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" {
		return 0, false
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")

	switch {
	case dots > 0 && commas == 0:
		if isThousandsSeparated(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	case commas > 0 && dots == 0:
		if isThousandsSeparated(cleaned, ",") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	case dots > 0 && commas > 0:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		last := strings.LastIndex(cleaned, ",")
		cleaned = strings.ReplaceAll(cleaned[:last], ",", "") + "." + cleaned[last+1:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(value)), true
}

func isThousandsSeparated(s, sep string) bool {
	groups := strings.Split(s, sep)
	if len(groups) > 2 {
		return true
	}
	return len(groups[len(groups)-1]) == 3
}

// FindAllAmounts scans free text for currency-like values, normalizes each
// match, keeps values inside the broad plausibility window, deduplicates
// and returns them sorted descending.
func FindAllAmounts(text string) []int64 {
	seen := map[int64]struct{}{}
	for _, pattern := range amountScanPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			value, ok := NormalizeAmount(match)
			if !ok || value < broadAmountRange.Min || value > broadAmountRange.Max {
				continue
			}
			seen[value] = struct{}{}
		}
	}

	amounts := make([]int64, 0, len(seen))
	for value := range seen {
		amounts = append(amounts, value)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] > amounts[j] })
	return amounts
}

// MostLikelyAmount narrows the bulk scan to a single value, preferring
// amounts inside the typical fee window before falling back to the largest
// detected value. Returns 0 when nothing plausible was found.
func MostLikelyAmount(text string, typical Range) int64 {
	amounts := FindAllAmounts(text)
	if len(amounts) == 0 {
		return 0
	}
	for _, value := range amounts {
		if value >= typical.Min && value <= typical.Max {
			return value
		}
	}
	return amounts[0]
}

// FormatCOP renders an amount the way Colombian receipts print it, with a
// dollar sign and dot-grouped thousands: 1234567 -> "$1.234.567".
func FormatCOP(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	digits := strconv.FormatInt(value, 10)

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	return b.String()
}
