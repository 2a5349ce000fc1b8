package crypto

import (
	"encoding/hex"
	"testing"
)

func TestMAC(t *testing.T) {
	secret := []byte("network secret")
	data := []byte("payload")

	mac := MAC(secret, data)
	if len(mac) != 32 {
		t.Fatalf("mac length should be 32, not %d", len(mac))
	}

	if !CheckMAC(secret, data, mac) {
		t.Fatalf("mac should verify")
	}

	if CheckMAC([]byte("other secret"), data, mac) {
		t.Fatalf("mac should not verify under a different secret")
	}

	tampered := append([]byte{}, data...)
	tampered[0] ^= 0x01
	if CheckMAC(secret, tampered, mac) {
		t.Fatalf("mac should not verify tampered data")
	}
}

func TestKeccak(t *testing.T) {
	// Keccak-256 of the empty string, as used by Ethereum.
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := hex.EncodeToString(Keccak256()); got != want {
		t.Fatalf("Keccak256(\"\") should be %s, not %s", want, got)
	}

	if len(Keccak512([]byte("a"), []byte("b"))) != 64 {
		t.Fatalf("Keccak512 digest should be 64 bytes")
	}

	a := hex.EncodeToString(Keccak512([]byte("ab")))
	b := hex.EncodeToString(Keccak512([]byte("a"), []byte("b")))
	if a != b {
		t.Fatalf("Keccak512 should hash the concatenation of its arguments")
	}
}
