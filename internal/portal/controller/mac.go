package controller

import (
	"errors"
	"strings"
)

var ErrInvalidMAC = errors.New("controller: invalid mac address")

// NormalizeMAC accepts a 48-bit MAC separated by ':', '-' or '.' (Cisco
// style), or bare hex, in any case, and returns the lower-case colon form.
func NormalizeMAC(s string) (string, error) {
	s = strings.TrimSpace(s)

	hex := make([]byte, 0, 12)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			hex = append(hex, c)
		case c >= 'A' && c <= 'F':
			hex = append(hex, c+('a'-'A'))
		case c == ':' || c == '-' || c == '.':
		default:
			return "", ErrInvalidMAC
		}
	}
	if len(hex) != 12 || !validGrouping(s) {
		return "", ErrInvalidMAC
	}

	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.Write(hex[i : i+2])
	}
	return b.String(), nil
}

// validGrouping rejects mixed separators and uneven groups such as
// "a:bb:cc:dd:ee:fff".
func validGrouping(s string) bool {
	sep := byte(0)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ':', '-', '.':
			if sep != 0 && sep != s[i] {
				return false
			}
			sep = s[i]
		}
	}

	if sep == 0 {
		return true
	}
	want := 2
	if sep == '.' {
		want = 4
	}
	for _, part := range strings.Split(s, string(sep)) {
		if len(part) != want {
			return false
		}
	}
	return true
}
