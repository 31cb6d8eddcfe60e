package canonical

import "strings"

// Normalize reduces a free-form token to its canonical comparison form:
// trimmed, lowercased, quotes and periods dropped, every other
// non-alphanumeric run collapsed to a single underscore.
func Normalize(token string) string {
	s := strings.ToLower(strings.TrimSpace(token))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '.':
			return -1
		}
		return r
	}, s)

	var b strings.Builder
	pendingSeparator := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			if pendingSeparator && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSeparator = false
			b.WriteRune(r)
			continue
		}
		pendingSeparator = true
	}
	return b.String()
}
