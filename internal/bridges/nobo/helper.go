package nobo

import (
	"strconv"
	"strings"
	"time"
)

// Wire encoding constants shared by all codecs.
const (
	// noBreakSpace encodes a literal space inside a single wire token.
	noBreakSpace = "\u00a0"

	// noValue is the wire sentinel for an absent id or time.
	noValue = "-1"

	// hubTimeLayout is the yyyyMMddHHmm format used for override times.
	hubTimeLayout = "200601021504"

	// hubTimeLength is the exact token length of a hub timestamp.
	hubTimeLength = len(hubTimeLayout)

	// fieldSeparator separates tokens within a line.
	fieldSeparator = " "
)

// FromHubString converts a wire name to its in-memory form by replacing
// every no-break space with an ordinary space.
func FromHubString(s string) string {
	return strings.ReplaceAll(s, noBreakSpace, " ")
}

// ToHubString converts an in-memory name to its wire form by replacing
// every ordinary space with a no-break space.
func ToHubString(s string) string {
	return strings.ReplaceAll(s, " ", noBreakSpace)
}

// ParseHubTime decodes a yyyyMMddHHmm token in the local time zone.
//
// Returns:
//   - *time.Time: nil when the token is the "-1" sentinel
//   - error: *DataError for anything that is not 12 digits or not a valid date
func ParseHubTime(token string) (*time.Time, error) {
	if token == noValue {
		return nil, nil //nolint:nilnil // nil time is the decoded "no value"
	}
	if len(token) != hubTimeLength || !isDigits(token) {
		return nil, dataError(token, token, "expected %d digit date", hubTimeLength)
	}
	t, err := time.ParseInLocation(hubTimeLayout, token, time.Local)
	if err != nil {
		return nil, dataError(token, token, "invalid date: %v", err)
	}
	return &t, nil
}

// FormatHubTime encodes t as yyyyMMddHHmm, or "-1" when t is nil.
func FormatHubTime(t *time.Time) string {
	if t == nil {
		return noValue
	}
	return t.Format(hubTimeLayout)
}

// LinePrefix returns the first token of a line (the record type).
func LinePrefix(line string) string {
	prefix, _, _ := strings.Cut(trimLine(line), fieldSeparator)
	return prefix
}

// record is a split wire line with the original text kept for errors.
type record struct {
	line   string
	tokens []string
}

// splitRecord splits line on single spaces and checks the token count.
func splitRecord(line string, arity int) (record, error) {
	line = trimLine(line)
	tokens := strings.Split(line, fieldSeparator)
	if len(tokens) != arity {
		return record{}, dataError(line, "", "expected %d fields, got %d", arity, len(tokens))
	}
	return record{line: line, tokens: tokens}, nil
}

// hasPrefix reports whether the record type is one of prefixes.
func (r record) hasPrefix(prefixes ...string) error {
	for _, p := range prefixes {
		if r.tokens[0] == p {
			return nil
		}
	}
	return dataError(r.line, r.tokens[0], "unexpected prefix, want one of %s", strings.Join(prefixes, ","))
}

func (r record) str(i int) string {
	return r.tokens[i]
}

func (r record) name(i int) string {
	return FromHubString(r.tokens[i])
}

func (r record) int(i int) (int, error) {
	v, err := strconv.Atoi(r.tokens[i])
	if err != nil {
		return 0, dataError(r.line, r.tokens[i], "field %d is not an integer", i)
	}
	return v, nil
}

func (r record) flag(i int) (bool, error) {
	switch r.tokens[i] {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, dataError(r.line, r.tokens[i], "field %d is not 0 or 1", i)
	}
}

func (r record) time(i int) (*time.Time, error) {
	t, err := ParseHubTime(r.tokens[i])
	if err != nil {
		return nil, dataError(r.line, r.tokens[i], "field %d is not a hub date", i)
	}
	return t, nil
}

func (r record) serial(i int) (SerialNumber, error) {
	s := SerialNumber(r.tokens[i])
	if !s.IsWellFormed() {
		return "", dataError(r.line, r.tokens[i], "field %d is not a serial number", i)
	}
	return s, nil
}

// joinFields builds a command line from the prefix and body tokens.
func joinFields(prefix string, fields ...string) string {
	return prefix + fieldSeparator + strings.Join(fields, fieldSeparator)
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// trimLine strips line terminators only; no-break spaces inside names
// must survive, so strings.TrimSpace is not used.
func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// isDecimal reports whether s is a plain [-]digits[.digits] number.
func isDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, hasPoint := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !hasPoint || isDigits(frac)
}
