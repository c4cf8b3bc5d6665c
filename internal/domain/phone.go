package domain

import "strings"

// NormalizePhone rewrites a contact number into the international
// digits-with-prefix form the messaging relay expects ("+27821234567").
//
// Rules, in order:
//   - empty input stays empty (no contact configured);
//   - a number already carrying "+" keeps its country code, with
//     formatting characters stripped;
//   - a locally formatted 10-digit number is assumed to belong to the
//     default country: a leading trunk "0" is dropped and defaultCC
//     ("+27", "+1", ...) is prepended;
//   - anything else gets a "+" prepended to its digits.
func NormalizePhone(raw, defaultCC string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	digits := keepDigits(raw)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}
	if len(digits) == 10 {
		if strings.HasPrefix(digits, "0") {
			digits = digits[1:]
		}
		return defaultCC + digits
	}
	return "+" + digits
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
