package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// Keccak512 returns the legacy (pre-NIST) Keccak-512 digest of the
// concatenation of the given byte slices.
func Keccak512(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak512()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// Keccak256 returns the legacy Keccak-256 digest of the data.
func Keccak256(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}
