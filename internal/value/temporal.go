package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Temporal component bounds. Interval hours are deliberately unbounded:
// TIME columns are durations, not times of day, and MySQL permits up to
// -838:59:59 .. 838:59:59.
const (
	maxMonth       = 12
	maxDay         = 31
	maxHour        = 23
	maxMinute      = 59
	maxSecond      = 59
	maxMicrosecond = 999_999
)

// conversionError builds the typed conversion failure for an out-of-range
// temporal component. The message grammar is part of the error contract:
// the exit-code classifier and callers match on it.
func conversionError(component string, value int, context string) error {
	return fmt.Errorf("Type conversion error: Invalid %s value %d in %s", component, value, context)
}

// convertDate validates a lexical DATE (YYYY-MM-DD) and returns its
// canonical rendering.
func convertDate(s string) (string, error) {
	year, month, day, err := parseDateParts(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

// convertDateTime validates a lexical DATETIME or TIMESTAMP
// (YYYY-MM-DD HH:MM:SS[.ffffff]) and returns its canonical rendering. The
// microsecond suffix is omitted when zero and otherwise exactly six digits.
func convertDateTime(s string) (string, error) {
	datePart, timePart, ok := strings.Cut(s, " ")
	if !ok {
		return "", fmt.Errorf("Type conversion error: malformed datetime value %q", s)
	}
	year, month, day, err := parseDateParts(datePart)
	if err != nil {
		return "", err
	}
	hour, minute, second, micro, err := parseClockParts(timePart, "datetime")
	if err != nil {
		return "", err
	}
	if hour > maxHour {
		return "", conversionError("hour", hour, "datetime")
	}

	canonical := fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second)
	if micro > 0 {
		canonical += fmt.Sprintf(".%06d", micro)
	}
	return canonical, nil
}

// convertTime validates a lexical TIME interval ([-]HH:MM:SS[.ffffff],
// hours unbounded) and returns its canonical rendering.
func convertTime(s string) (string, error) {
	rest := s
	negative := strings.HasPrefix(rest, "-")
	if negative {
		rest = rest[1:]
	}
	hour, minute, second, micro, err := parseClockParts(rest, "time")
	if err != nil {
		return "", err
	}

	canonical := fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
	if micro > 0 {
		canonical += fmt.Sprintf(".%06d", micro)
	}
	if negative {
		canonical = "-" + canonical
	}
	return canonical, nil
}

// parseDateParts splits YYYY-MM-DD and range-checks month and day. Calendar
// consistency (e.g. Feb 30) is not re-checked; the server already enforced
// it or the caller asked for strict ranges only.
func parseDateParts(s string) (year, month, day int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("Type conversion error: malformed date value %q", s)
	}
	year, err = atoiComponent(parts[0], s)
	if err != nil {
		return 0, 0, 0, err
	}
	month, err = atoiComponent(parts[1], s)
	if err != nil {
		return 0, 0, 0, err
	}
	day, err = atoiComponent(parts[2], s)
	if err != nil {
		return 0, 0, 0, err
	}
	if month < 1 || month > maxMonth {
		return 0, 0, 0, conversionError("month", month, "date")
	}
	if day < 1 || day > maxDay {
		return 0, 0, 0, conversionError("day", day, "date")
	}
	return year, month, day, nil
}

// parseClockParts splits HH:MM:SS[.ffffff] and range-checks minute, second,
// and microsecond. The hour must be non-negative; its upper bound differs
// between datetime and interval contexts, so the caller checks it.
func parseClockParts(s, context string) (hour, minute, second, micro int, err error) {
	clock, frac, hasFrac := strings.Cut(s, ".")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, 0, 0, 0, fmt.Errorf("Type conversion error: malformed %s value %q", context, s)
	}
	hour, err = atoiComponent(parts[0], s)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	minute, err = atoiComponent(parts[1], s)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	second, err = atoiComponent(parts[2], s)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if hasFrac {
		micro, err = parseMicroseconds(frac, s, context)
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}

	if hour < 0 {
		return 0, 0, 0, 0, conversionError("hour", hour, context)
	}
	if minute < 0 || minute > maxMinute {
		return 0, 0, 0, 0, conversionError("minute", minute, context)
	}
	if second < 0 || second > maxSecond {
		return 0, 0, 0, 0, conversionError("second", second, context)
	}
	if micro > maxMicrosecond {
		return 0, 0, 0, 0, conversionError("microsecond", micro, context)
	}
	return hour, minute, second, micro, nil
}

// parseMicroseconds widens a 1..6 digit fraction to microseconds. A seventh
// digit means the source is already out of range and is reported as such.
func parseMicroseconds(frac, whole, context string) (int, error) {
	if frac == "" {
		return 0, fmt.Errorf("Type conversion error: malformed fractional seconds in %q", whole)
	}
	n, err := strconv.Atoi(frac)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("Type conversion error: malformed fractional seconds in %q", whole)
	}
	if len(frac) > 6 {
		return 0, conversionError("microsecond", n, context)
	}
	for i := len(frac); i < 6; i++ {
		n *= 10
	}
	return n, nil
}

func atoiComponent(part, whole string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(part))
	if err != nil {
		return 0, fmt.Errorf("Type conversion error: malformed temporal value %q", whole)
	}
	return n, nil
}
