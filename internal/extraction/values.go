package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

var valuePattern = regexp.MustCompile(`^([<>])?\s*([-+]?(?:\d[\d.,]*|[.,]\d+)(?:[eE][-+]?\d+)?)$`)

// NormalizeValue converts the literal text of a measurement into its number:
// "< X" yields X/2, "> X" yields X and a plain literal yields itself. ok is false
// when the text is not one of those shapes (e.g. "Ausencia", "N.D.").
func NormalizeValue(original string) (value float64, ok bool) {
	m := valuePattern.FindStringSubmatch(strings.TrimSpace(original))
	if m == nil {
		return 0, false
	}
	n, ok := parseDecimal(m[2])
	if !ok {
		return 0, false
	}
	if m[1] == "<" {
		return n / 2, true
	}
	return n, true
}

// parseDecimal accepts both "1234.5" and "1.234,5" style numbers.
func parseDecimal(s string) (float64, bool) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
