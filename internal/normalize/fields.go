// Package normalize canonicalizes extracted documents before validation.
// Normalizers only reshape values the extractor returned; unparseable values
// are passed through for the schema validator to reject.
package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	nonDigits      = regexp.MustCompile(`\D`)
	commaDecimal   = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	isoTimestamp   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)
	moneyDecorator = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", " ", "", "\u00a0", "")
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"02.01.2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Mon, Jan 2, 2006",
	"20060102",
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 3:04 PM",
	"01/02/2006 03:04 PM",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"01/02/06 15:04",
	"01/02/06 3:04 PM",
	"1/2/06 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"January 2, 2006 3:04 PM",
	"02.01.2006 15:04",
	time.RFC1123,
	time.RFC1123Z,
}

// normalizeDate reformats a date string as YYYY-MM-DD
func normalizeDate(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	// local ISO date-times carry no zone, so the calendar date is the prefix
	if isoTimestamp.MatchString(s) {
		date, _, _ := strings.Cut(s, "T")
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return date
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

// normalizeTimestamp reformats a timestamp as YYYY-MM-DDTHH:MM:SS, or YYYY-MM-DD
// when only a date is known. No time zone is invented.
func normalizeTimestamp(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if isoTimestamp.MatchString(s) {
		return s
	}
	if t, err := time.Parse("2006-01-02 15:04:05Z07:00", s); err == nil {
		return t.Format(time.RFC3339)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02T15:04:05")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

// normalizeMoney converts amounts to decimal strings. Amounts with up to two
// decimals are rendered with exactly two; finer precision is kept.
func normalizeMoney(v any) any {
	var d decimal.Decimal
	switch n := v.(type) {
	case float64:
		d = decimal.NewFromFloat(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return v
		}
		d = parsed
	case string:
		parsed, ok := parseMoneyString(n)
		if !ok {
			return v
		}
		d = parsed
	default:
		return v
	}
	return formatMoney(d)
}

func parseMoneyString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	upper := strings.ToUpper(s)
	for _, code := range []string{"USD", "EUR", "GBP", "CAD", "AUD"} {
		upper = strings.TrimPrefix(upper, code)
		upper = strings.TrimSuffix(upper, code)
	}
	s = moneyDecorator.Replace(strings.TrimSpace(upper))

	s, ok := plainDecimal(s)
	if !ok {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// plainDecimal rewrites an amount written with thousands separators or a
// decimal comma as a plain decimal. When both "." and "," appear the last one
// is the decimal separator. Groupings that are not exactly three digits are
// rejected rather than guessed.
func plainDecimal(s string) (string, bool) {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		sep, group := ".", ","
		if comma > dot {
			sep, group = ",", "."
		}
		i := strings.LastIndex(s, sep)
		whole, frac := s[:i], s[i+1:]
		if !isDigits(frac) || !groupedBy(whole, group) {
			return "", false
		}
		return strings.ReplaceAll(whole, group, "") + "." + frac, true
	case comma >= 0:
		if commaDecimal.MatchString(s) {
			return strings.Replace(s, ",", ".", 1), true
		}
		if groupedBy(s, ",") {
			return strings.ReplaceAll(s, ",", ""), true
		}
		return "", false
	case strings.Count(s, ".") > 1:
		if groupedBy(s, ".") {
			return strings.ReplaceAll(s, ".", ""), true
		}
		return "", false
	}
	return s, true
}

// groupedBy reports whether s is digits split into thousands by sep
func groupedBy(s, sep string) bool {
	groups := strings.Split(strings.TrimPrefix(s, "-"), sep)
	if len(groups[0]) > 3 || !isDigits(groups[0]) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !isDigits(g) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatMoney(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

// normalizeRouting strips separators and fixes the width to 9 digits
func normalizeRouting(v any) any {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case float64:
		s = strconv.FormatFloat(n, 'f', 0, 64)
	default:
		return v
	}
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return v
	}
	switch {
	case len(digits) < 9:
		return strings.Repeat("0", 9-len(digits)) + digits
	case len(digits) > 9:
		return digits[len(digits)-9:]
	}
	return digits
}

// normalizeCurrency upper-cases a currency code
func normalizeCurrency(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// enumOf matches a value case-insensitively against a closed vocabulary.
// Unmatched values are returned unchanged.
func enumOf(vocab []string, synonyms map[string]string) func(any) any {
	known := make(map[string]struct{}, len(vocab))
	for _, v := range vocab {
		known[v] = struct{}{}
	}
	return func(v any) any {
		s, ok := v.(string)
		if !ok || s == "" {
			return v
		}
		key := enumKey(s)
		if _, ok := known[key]; ok {
			return key
		}
		if mapped, ok := synonyms[key]; ok {
			return mapped
		}
		return v
	}
}

func enumKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("'", "", "’", "", ".", "").Replace(s)
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	}), "_")
	return s
}

// normalizeBool coerces yes/no style strings
func normalizeBool(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "signed", "present":
		return true
	case "false", "no", "n", "unsigned", "absent", "missing":
		return false
	}
	return v
}

// normalizeNumber converts numeric strings ("2", "8.25%") to numbers
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return v
		}
		return f
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return v
		}
		return f
	case int:
		return float64(n)
	}
	return v
}

// normalizeLastDigits keeps the trailing card digits ("**** 1234" -> "1234")
func normalizeLastDigits(v any) any {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case float64:
		s = strconv.FormatFloat(n, 'f', 0, 64)
	default:
		return v
	}
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return v
	}
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}

// apply rewrites m[key] when the key is present and non-null
func apply(m map[string]any, key string, fn func(any) any) {
	v, ok := m[key]
	if !ok || v == nil {
		return
	}
	m[key] = fn(v)
}

// eachObject calls fn for every object in the array stored at m[key]
func eachObject(m map[string]any, key string, fn func(map[string]any)) {
	list, ok := m[key].([]any)
	if !ok {
		return
	}
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			fn(obj)
		}
	}
}

// isBlank reports whether a field is missing, null or an empty string
func isBlank(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// clone deep-copies JSON-shaped values and trims every string
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = clone(val)
		}
		return out
	case string:
		return strings.TrimSpace(t)
	}
	return v
}

func cloneObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return clone(m).(map[string]any)
}
