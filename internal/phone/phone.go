// Package phone normalizes US phone numbers for store lookups and chat
// display. Requesters type numbers free-form into the intake form, so
// everything here has to tolerate punctuation, country codes and garbage.
package phone

import (
	"fmt"
	"strings"
)

// DisplayNumber formats a raw phone number as ###-###-#### for humans. Input
// that cannot be parsed is passed through with a note, so the coordinator
// still sees whatever the requester typed.
func DisplayNumber(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "None provided"
	}

	digits, ok := usDigits(raw)
	if !ok {
		return fmt.Sprintf("%s _[Bot note: unparseable number.]_", raw)
	}

	return fmt.Sprintf("%s-%s-%s", digits[:3], digits[3:6], digits[6:])
}

// E164 normalizes a US number into +1########## form, for exact-match store
// queries. The empty string is returned when the input is not a US number.
func E164(raw string) string {
	digits, ok := usDigits(raw)
	if !ok {
		return ""
	}
	return "+1" + digits
}

// usDigits extracts the 10 significant digits of a US number, stripping an
// optional leading country code.
func usDigits(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	if len(digits) != 10 || digits[0] == '0' || digits[0] == '1' {
		return "", false
	}

	return digits, true
}
