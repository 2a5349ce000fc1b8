package keys

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec"
	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
)

// FromPublicKey returns the 33-byte compressed form of the public key.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return (*btcec.PublicKey)(pub).SerializeCompressed()
}

// ToPublicKey parses a compressed or uncompressed secp256k1 public key.
func ToPublicKey(pub []byte) (*ecdsa.PublicKey, error) {
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return nil, err
	}
	return key.ToECDSA(), nil
}

// Address returns the ledger address controlled by the public key.
func Address(pub *ecdsa.PublicKey) string {
	return AddressFromBytes(FromPublicKey(pub))
}

// AddressFromBytes is Address for a public key that is already serialized.
func AddressFromBytes(pub []byte) string {
	return hex.EncodeToString(hcrypto.Keccak256(pub))
}

// PublicKeyHex returns the hexadecimal representation of the compressed public
// key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(FromPublicKey(pub))
}
