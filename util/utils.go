// Package util holds small hex helpers shared by the tag, digest and key
// parsers.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns n random bytes, lowercase hex encoded. It panics if the
// system random source fails.
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// IsLowerHex reports whether s is exactly n bytes encoded as lowercase hex,
// without prefix.
func IsLowerHex(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
