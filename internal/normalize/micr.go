package normalize

import (
	"regexp"
	"strings"
)

// E-13B MICR symbols
const (
	micrTransit = '⑆'
	micrAmount  = '⑇'
	micrOnUs    = '⑈'
	micrDash    = '⑉'
)

var (
	// OCR engines without the E-13B glyphs often emit the MICR font's ASCII letters
	asciiMICRLine = regexp.MustCompile(`^[0-9ABCD\s]+$`)
	asciiMICR     = strings.NewReplacer("A", string(micrTransit), "B", string(micrAmount), "C", string(micrOnUs), "D", string(micrDash))

	transitField = regexp.MustCompile(`\x{2446}([\d\x{2449} ]+)\x{2446}`)
	onUsField    = regexp.MustCompile(`\x{2448}([\d\x{2449} ]+)\x{2448}`)
	amountField  = regexp.MustCompile(`\x{2447}([\d ]+)\x{2447}`)
	onUsTail     = regexp.MustCompile(`^\s*([\d\x{2449} ]+)\x{2448}\s*(\d+)?\s*$`)
)

// MICR holds the numbers encoded in a check's MICR line
type MICR struct {
	RoutingNumber string
	AccountNumber string
	CheckNumber   string
}

// ParseMICR decodes a MICR line. Transit symbols delimit the routing number,
// on-us symbols the account number and amount symbols the check number.
// The second return value is false when nothing could be decoded.
func ParseMICR(line string) (MICR, bool) {
	line = strings.TrimSpace(line)
	if asciiMICRLine.MatchString(line) && strings.ContainsAny(line, "ABCD") {
		line = asciiMICR.Replace(line)
	}

	var m MICR
	before, after := "", line
	if loc := transitField.FindStringSubmatchIndex(line); loc != nil {
		if routing := digitsOf(line[loc[2]:loc[3]]); len(routing) == 9 {
			m.RoutingNumber = routing
		}
		before, after = line[:loc[0]], line[loc[1]:]
	}

	if match := onUsField.FindStringSubmatch(after); match != nil {
		m.AccountNumber = digitsOf(match[1])
	} else if match := onUsTail.FindStringSubmatch(after); match != nil {
		// personal checks: ⑆routing⑆ account⑈ checknumber
		m.AccountNumber = digitsOf(match[1])
		m.CheckNumber = digitsOf(match[2])
	}

	if match := amountField.FindStringSubmatch(line); match != nil {
		m.CheckNumber = digitsOf(match[1])
	} else if match := onUsField.FindStringSubmatch(before); match != nil && m.CheckNumber == "" {
		// business checks carry the serial number in the auxiliary on-us field
		m.CheckNumber = digitsOf(match[1])
	}

	ok := m.RoutingNumber != "" || m.AccountNumber != "" || m.CheckNumber != ""
	return m, ok
}

func digitsOf(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}
