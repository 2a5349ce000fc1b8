package wire

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"

	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

// Envelope errors.
var (
	ErrAuthentication = errors.New("envelope authentication failed")
	ErrSerialization  = errors.New("payload cannot be serialized")
	ErrMalformed      = errors.New("malformed envelope")
)

// Signature is a DER encoded signature with the compressed public key that
// verifies it.
type Signature struct {
	PublicKey []byte `json:"public_key"`
	Sig       []byte `json:"sig"`
}

// Envelope is the authenticated unit of gossip. Payload holds the canonical
// encoding of a Body; the MAC and the signature cover exactly these bytes.
type Envelope struct {
	Payload   []byte    `json:"payload"`
	MAC       []byte    `json:"mac"`
	Signature Signature `json:"signature"`
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// encode returns the canonical JSON encoding of v: struct fields in
// declaration order, map keys sorted.
func encode(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	if err := codec.NewEncoder(&b, jsonHandle()).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, jsonHandle()).Decode(v)
}

// Construct wraps payload in an envelope authenticated with secret and signed
// with key.
func Construct(payload Payload, secret []byte, key *ecdsa.PrivateKey) (*Envelope, error) {
	body, err := NewBody(payload)
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}

	data, err := encode(body)
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}

	sig, err := keys.Sign(key, hcrypto.SHA256(data))
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}

	return &Envelope{
		Payload: data,
		MAC:     hcrypto.MAC(secret, data),
		Signature: Signature{
			PublicKey: keys.FromPublicKey(&key.PublicKey),
			Sig:       sig,
		},
	}, nil
}

// CheckMAC reports whether the MAC matches the payload under secret.
func (e *Envelope) CheckMAC(secret []byte) bool {
	return hcrypto.CheckMAC(secret, e.Payload, e.MAC)
}

// CheckSignature reports whether the signature matches the payload under the
// embedded public key.
func (e *Envelope) CheckSignature() bool {
	return keys.Verify(e.Signature.PublicKey, hcrypto.SHA256(e.Payload), e.Signature.Sig)
}

// Sender returns the ledger address of the signing key.
func (e *Envelope) Sender() string {
	return keys.AddressFromBytes(e.Signature.PublicKey)
}

// Verify authenticates the envelope, MAC first, and returns its payload.
// Authentication failures wrap ErrAuthentication; a payload that
// authenticates but does not decode wraps ErrMalformed.
func Verify(e *Envelope, secret []byte) (Payload, error) {
	if !e.CheckMAC(secret) {
		return nil, errors.Wrap(ErrAuthentication, "mac mismatch")
	}
	if !e.CheckSignature() {
		return nil, errors.Wrap(ErrAuthentication, "signature mismatch")
	}

	var body Body
	if err := decode(e.Payload, &body); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	p, err := body.Payload()
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return p, nil
}

// Marshal returns the wire bytes of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := encode(e)
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}
	return data, nil
}

// Decode parses wire bytes. It does not authenticate.
func Decode(data []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := decode(data, e); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if len(e.Payload) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty payload")
	}
	return e, nil
}
