package common

import "regexp"

var hex64 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// IsHex64 reports whether s is exactly 64 hexadecimal characters, the format
// of addresses and identifiers on the ledger.
func IsHex64(s string) bool {
	return hex64.MatchString(s)
}
