package match

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Numeric literals may use comma grouping and an optional decimal part.
var numberPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

const (
	yearRangeLow       = 2019
	yearRangeHigh      = 2030
	numericTolerance   = 0.05
	numericExactEquals = 1e-9
)

// numbersAgree extracts the primary numeric literal from each string and
// reports whether the two agree within a 5% relative tolerance.
func numbersAgree(produced, expected string) bool {
	producedNum, ok := primaryNumber(produced)
	if !ok {
		return false
	}
	expectedNum, ok := primaryNumber(expected)
	if !ok {
		return false
	}
	denom := math.Max(math.Abs(producedNum), math.Abs(expectedNum))
	if denom < numericExactEquals {
		return true
	}
	return math.Abs(producedNum-expectedNum)/denom <= numericTolerance
}

// primaryNumber picks the literal of largest magnitude, after discarding
// plausible years when more than one literal is present.
func primaryNumber(value string) (float64, bool) {
	numbers := extractNumbers(value)
	if len(numbers) == 0 {
		return 0, false
	}
	if len(numbers) > 1 {
		kept := numbers[:0]
		for _, n := range numbers {
			if isPlausibleYear(n) {
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) > 0 {
			numbers = kept
		}
	}
	primary := numbers[0]
	for _, n := range numbers[1:] {
		if math.Abs(n) > math.Abs(primary) {
			primary = n
		}
	}
	return primary, true
}

func extractNumbers(value string) []float64 {
	matches := numberPattern.FindAllString(value, -1)
	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		cleaned := strings.ReplaceAll(m, ",", "")
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}

func isPlausibleYear(n float64) bool {
	if n != math.Trunc(n) {
		return false
	}
	return n >= yearRangeLow && n <= yearRangeHigh
}
