package sql

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

// NullLiteral is emitted for absent, empty and "null" values.
const NullLiteral = "NULL"

var (
	shortDateRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`)
	isoDateRegex   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// IsNullValue reports whether s is null-equivalent: empty after trimming or
// equal to "null" in any case.
func IsNullValue(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null")
}

// EscapeString doubles every single quote. Nothing else is altered.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// QuoteString escapes s and wraps it in single quotes.
func QuoteString(s string) string {
	return "'" + EscapeString(s) + "'"
}

// CoerceValue converts a request value into SQL literal text for param.
//
// List parameters render as a comma-separated list of quoted literals with
// null-equivalent entries removed, or NULL when nothing is left. Scalars render
// as NULL when null-equivalent, otherwise by type: text is quoted, dates are
// normalized to DD/MM/YY and quoted, numbers are emitted unquoted.
func CoerceValue(param models.ParameterDefinition, value models.ParameterValue) string {
	if param.IsFile {
		return FormatInList(value.Lines())
	}
	if !value.IsPresent() {
		return NullLiteral
	}
	return CoerceScalar(param.Type, scalarOf(value))
}

// CoerceScalar converts a single raw value of the given type into SQL literal text.
func CoerceScalar(paramType models.ParameterType, raw string) string {
	if IsNullValue(raw) {
		return NullLiteral
	}

	value := strings.TrimSpace(raw)
	switch paramType {
	case models.ParameterTypeDate:
		return FormatDate(value)
	case models.ParameterTypeNumber:
		return value
	default:
		return QuoteString(value)
	}
}

// FormatDate renders a date literal in DD/MM/YY form.
// "DD/MM/YY" is kept as is, "YYYY-MM-DD" is reformatted using the last two
// digits of the year, and anything else is quoted unchanged.
//
//	FormatDate("2025-11-30")  // '30/11/25'
//	FormatDate("30/11/25")    // '30/11/25'
//	FormatDate("next friday") // 'next friday'
func FormatDate(value string) string {
	if IsNullValue(value) {
		return NullLiteral
	}

	value = strings.TrimSpace(value)
	if shortDateRegex.MatchString(value) {
		return "'" + value + "'"
	}
	if m := isoDateRegex.FindStringSubmatch(value); m != nil {
		year, month, day := m[1], m[2], m[3]
		return "'" + day + "/" + month + "/" + year[len(year)-2:] + "'"
	}
	return QuoteString(value)
}

// FormatInList renders values as the inside of an IN clause: quoted literals
// joined with ", ". Null-equivalent entries are dropped; NULL is returned when
// no entry is left. Parentheses come from the template.
func FormatInList(values []string) string {
	var b strings.Builder
	n := 0
	for _, v := range values {
		if IsNullValue(v) {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteString(strings.TrimSpace(v)))
		n++
	}
	if n == 0 {
		return NullLiteral
	}
	return b.String()
}

// scalarOf picks the value used for a scalar parameter. A list supplied for a
// scalar parameter contributes its first non-null entry.
func scalarOf(value models.ParameterValue) string {
	if !value.IsList() {
		return value.String()
	}
	for _, line := range value.Lines() {
		if !IsNullValue(line) {
			return line
		}
	}
	return ""
}
