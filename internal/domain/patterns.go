package domain

import (
	"regexp"
	"strconv"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

func parseDate(s string) (time.Time, error)  { return time.Parse(dateLayout, s) }
func parseClock(s string) (time.Time, error) { return time.Parse(clockLayout, s) }

// Default validation patterns per data field. A DataSpec.CustomPattern
// overrides the field's entry.
var fieldPatterns = map[DataField]*regexp.Regexp{
	FieldName:     regexp.MustCompile(`^[\p{L}][\p{L} .'-]{0,99}$`),
	FieldPhone:    regexp.MustCompile(`^\+?[0-9][0-9 -]{5,19}$`),
	FieldEmail:    regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`),
	FieldNickname: regexp.MustCompile(`^[\p{L}0-9_-]{1,32}$`),
	FieldAge:      regexp.MustCompile(`^[0-9]{1,3}$`),
	FieldBirthday: regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`),
}

const (
	minAge = 1
	maxAge = 100
)

// validateDataValue checks an answered data value against the field's
// pattern and, for age and birthday, its numeric or calendar bounds.
// Multiple failures are all reported.
func validateDataValue(spec DataSpec, value string, now time.Time) []ErrorKind {
	var kinds []ErrorKind

	pattern := fieldPatterns[spec.Field]
	if spec.CustomPattern != "" {
		// Compiles by construction-time validation.
		pattern = regexp.MustCompile(spec.CustomPattern)
	}
	if pattern != nil && !pattern.MatchString(value) {
		kinds = append(kinds, ErrorInvalidFormat)
	}

	switch spec.Field {
	case FieldAge:
		if n, err := strconv.Atoi(value); err == nil {
			if n < minAge || n > maxAge {
				kinds = append(kinds, ErrorOutOfRange)
			}
		}
	case FieldBirthday:
		if d, err := parseDate(value); err == nil {
			oldest := now.AddDate(-maxAge, 0, 0)
			if d.After(now) || d.Before(oldest) {
				kinds = append(kinds, ErrorOutOfRange)
			}
		}
	}
	return kinds
}
