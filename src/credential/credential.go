// Package credential implements carbon credentials: signed attestations by an
// issuer that a beneficiary retired a quantity of CO2, gossiped between nodes
// and stored once verified.
package credential

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicnetworks/hyperdag/src/common"
	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

// Credential errors.
var (
	ErrInvalid   = errors.New("invalid credential")
	ErrSignature = errors.New("credential signature verification failed")
	ErrDuplicate = errors.New("credential already stored")
)

// Credential certifies that Beneficiary retired TonnesCO2 through Project.
type Credential struct {
	ID          string `json:"id"`
	Issuer      string `json:"issuer"`
	Beneficiary string `json:"beneficiary"`
	Project     string `json:"project"`
	TonnesCO2   uint64 `json:"tonnes_co2"`
	Timestamp   uint64 `json:"timestamp"`
	PublicKey   []byte `json:"public_key"`
	Signature   []byte `json:"signature"`
}

// New creates a credential signed by the issuer key.
func New(key *ecdsa.PrivateKey, beneficiary, project string, tonnes uint64, at time.Time) (*Credential, error) {
	c := &Credential{
		Issuer:      keys.Address(&key.PublicKey),
		Beneficiary: beneficiary,
		Project:     project,
		TonnesCO2:   tonnes,
		Timestamp:   uint64(at.Unix()),
		PublicKey:   keys.FromPublicKey(&key.PublicKey),
	}
	if err := c.checkFields(); err != nil {
		return nil, err
	}

	sig, err := keys.Sign(key, c.digest())
	if err != nil {
		return nil, err
	}
	c.Signature = sig
	c.ID = c.computeID()
	return c, nil
}

func (c *Credential) digest() []byte {
	var b bytes.Buffer
	var n [8]byte
	for _, s := range []string{c.Issuer, c.Beneficiary, c.Project} {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		b.Write(n[:])
		b.WriteString(s)
	}
	binary.BigEndian.PutUint64(n[:], c.TonnesCO2)
	b.Write(n[:])
	binary.BigEndian.PutUint64(n[:], c.Timestamp)
	b.Write(n[:])
	return hcrypto.SHA256(b.Bytes())
}

func (c *Credential) computeID() string {
	return hex.EncodeToString(hcrypto.SHA256(append(c.digest(), c.Signature...)))
}

func (c *Credential) checkFields() error {
	if !common.IsHex64(c.Issuer) || !common.IsHex64(c.Beneficiary) {
		return errors.Wrap(ErrInvalid, "malformed issuer or beneficiary address")
	}
	if c.Project == "" {
		return errors.Wrap(ErrInvalid, "project is required")
	}
	if c.TonnesCO2 == 0 {
		return errors.Wrap(ErrInvalid, "quantity must be positive")
	}
	return nil
}

// Verify checks the fields, the issuer's signature and the id.
func (c *Credential) Verify() error {
	if err := c.checkFields(); err != nil {
		return err
	}
	if keys.AddressFromBytes(c.PublicKey) != c.Issuer {
		return errors.Wrap(ErrSignature, "public key does not match issuer")
	}
	if !keys.Verify(c.PublicKey, c.digest(), c.Signature) {
		return ErrSignature
	}
	if c.computeID() != c.ID {
		return errors.Wrap(ErrInvalid, "id does not match content")
	}
	return nil
}

// Store keeps verified credentials.
type Store struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{creds: make(map[string]*Credential)}
}

// VerifyAndStore verifies c and stores it if it is new.
func (s *Store) VerifyAndStore(c *Credential) error {
	if err := c.Verify(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[c.ID]; ok {
		return ErrDuplicate
	}
	s.creds[c.ID] = c
	return nil
}

// Get returns a stored credential.
func (s *Store) Get(id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, common.NewStoreErr("Credential", common.KeyNotFound, id)
	}
	return c, nil
}

// ByBeneficiary returns the credentials of an address, oldest first.
func (s *Store) ByBeneficiary(addr string) []*Credential {
	s.mu.RLock()
	var res []*Credential
	for _, c := range s.creds {
		if c.Beneficiary == addr {
			res = append(res, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Timestamp == res[j].Timestamp {
			return res[i].ID < res[j].ID
		}
		return res[i].Timestamp < res[j].Timestamp
	})
	return res
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
