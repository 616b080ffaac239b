package relay

import "strings"

// SanitizeRoom keeps only ASCII letters, digits and hyphens from a user-supplied room path.
func SanitizeRoom(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, raw)
}
