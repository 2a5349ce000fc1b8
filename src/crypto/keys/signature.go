package keys

import (
	"crypto/ecdsa"
	"crypto/rand"

	"github.com/btcsuite/btcd/btcec"
)

// Sign signs a digest with the private key and returns the DER encoded
// signature, normalized to a low S value.
func Sign(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, err
	}
	sig := &btcec.Signature{R: r, S: s}
	return sig.Serialize(), nil
}

// Verify reports whether der is a valid signature of digest by the owner of
// the serialized public key pub.
func Verify(pub []byte, digest []byte, der []byte) bool {
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return false
	}
	sig, err := btcec.ParseDERSignature(der, btcec.S256())
	if err != nil {
		return false
	}
	return sig.Verify(digest, key)
}
