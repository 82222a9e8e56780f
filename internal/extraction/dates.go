package extraction

import (
	"regexp"
	"strconv"
	"time"
)

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:\b|T)`)
	dmyDatePattern   = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	samplingDateForm = "2006-01-02"
)

// NormalizeSamplingDate finds every date in s and returns the earliest as
// YYYY-MM-DD. It returns nil when s holds no recognizable date.
func NormalizeSamplingDate(s *string) *string {
	if s == nil {
		return nil
	}

	var earliest time.Time
	consider := func(year, month, day string) {
		y, _ := strconv.Atoi(year)
		m, _ := strconv.Atoi(month)
		d, _ := strconv.Atoi(day)
		t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow; reject dates that did not round-trip.
		if t.Year() != y || int(t.Month()) != m || t.Day() != d {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}

	for _, m := range isoDatePattern.FindAllStringSubmatch(*s, -1) {
		consider(m[1], m[2], m[3])
	}
	for _, m := range dmyDatePattern.FindAllStringSubmatch(*s, -1) {
		year := m[3]
		// Two-digit years are read as 20YY.
		if len(year) == 2 {
			year = "20" + year
		}
		consider(year, m[2], m[1])
	}

	if earliest.IsZero() {
		return nil
	}
	out := earliest.Format(samplingDateForm)
	return &out
}
