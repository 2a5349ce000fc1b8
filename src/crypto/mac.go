package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// MAC computes the HMAC-SHA256 of data under the shared secret.
func MAC(secret, data []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return mac.Sum(nil)
}

// CheckMAC recomputes the HMAC-SHA256 of data and compares it with expected in
// constant time.
func CheckMAC(secret, data, expected []byte) bool {
	return hmac.Equal(MAC(secret, data), expected)
}
