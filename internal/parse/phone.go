package parse

import "strings"

// DefaultCountryCode is prefixed to local numbers.
const DefaultCountryCode = "+91"

// Phone normalises a contact number to international form. Numbers already
// starting with "+" are returned unchanged apart from whitespace removal.
func Phone(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" || strings.HasPrefix(s, "+") {
		return s
	}
	return DefaultCountryCode + s
}

// LocalPhoneValid reports whether raw is a 10 digit local number, the only
// form accepted when contacts are entered.
func LocalPhoneValid(raw string) bool {
	s := strings.TrimSpace(raw)
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
