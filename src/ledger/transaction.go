package ledger

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

// Input references the UTXO spent by a transaction.
type Input struct {
	TxID        string `json:"tx_id"`
	OutputIndex uint32 `json:"output_index"`
}

// Key returns the store key of the referenced UTXO.
func (i Input) Key() string {
	return UTXOKey(i.TxID, i.OutputIndex)
}

// Output creates a UTXO. EncryptedAmount is an opaque blob carried for
// privacy-preserving clients; validation uses the clear Amount.
type Output struct {
	Address         string `json:"address"`
	Amount          uint64 `json:"amount"`
	EncryptedAmount []byte `json:"encrypted_amount,omitempty"`
}

// Transaction moves value between addresses. A transaction without inputs is
// a coinbase.
type Transaction struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	Receiver  string   `json:"receiver"`
	Amount    uint64   `json:"amount"`
	Fee       uint64   `json:"fee"`
	Inputs    []Input  `json:"inputs"`
	Outputs   []Output `json:"outputs"`
	PublicKey []byte   `json:"public_key"`
	Signature []byte   `json:"signature"`
	Timestamp uint64   `json:"timestamp"`
}

// RewardSchedule gives the block reward in force at a unix timestamp.
type RewardSchedule interface {
	CalculateReward(timestamp uint64) (uint64, error)
}

// Chain is the read side of the DAG that transaction validation needs.
// ReadLocked runs fn while holding the DAG read lock.
type Chain interface {
	ReadLocked(ctx context.Context, fn func(RewardSchedule) error) error
}

// TxConfig holds the parameters of a new transaction.
type TxConfig struct {
	Sender   string
	Receiver string
	Amount   uint64
	Fee      uint64
	Inputs   []Input
	Outputs  []Output
	Key      *ecdsa.PrivateKey

	// Activity is the node-wide sliding window of recently created
	// transactions. It may be nil, in which case no rate limit applies.
	Activity *ActivityWindow

	// Now overrides time.Now.
	Now func() time.Time
}

// NewTransaction validates the configuration, then stamps, signs and
// identifies a new transaction. No transaction is returned unless every check
// passes.
func NewTransaction(conf TxConfig) (*Transaction, error) {
	if conf.Sender == "" || conf.Receiver == "" {
		return nil, invalidStructure("sender and receiver are required")
	}
	if len(conf.Inputs) > 0 && conf.Amount == 0 {
		return nil, invalidStructure("transfer amount must be positive")
	}
	if len(conf.Outputs) == 0 {
		return nil, invalidStructure("at least one output is required")
	}
	if conf.Key == nil {
		return nil, invalidStructure("signing key is required")
	}

	now := time.Now
	if conf.Now != nil {
		now = conf.Now
	}
	t := now()

	if conf.Activity != nil && !conf.Activity.Allow(t) {
		return nil, ErrRateLimitExceeded
	}

	if err := validateAddresses(conf.Sender, conf.Receiver, conf.Outputs); err != nil {
		return nil, err
	}

	if t.Unix() <= 0 {
		return nil, ErrTimestamp
	}

	tx := &Transaction{
		Sender:    conf.Sender,
		Receiver:  conf.Receiver,
		Amount:    conf.Amount,
		Fee:       conf.Fee,
		Inputs:    append([]Input(nil), conf.Inputs...),
		Outputs:   append([]Output(nil), conf.Outputs...),
		PublicKey: keys.FromPublicKey(&conf.Key.PublicKey),
		Timestamp: uint64(t.Unix()),
	}

	if err := tx.Sign(conf.Key); err != nil {
		return nil, err
	}

	if conf.Activity != nil && !conf.Activity.Reserve(tx.ID, t, tx.Amount) {
		return nil, ErrRateLimitExceeded
	}

	return tx, nil
}

// IsCoinbase reports whether the transaction mints new value.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// Sign sets the public key, signature and identifier of the transaction.
func (tx *Transaction) Sign(key *ecdsa.PrivateKey) error {
	tx.PublicKey = keys.FromPublicKey(&key.PublicKey)
	sig, err := keys.Sign(key, tx.SigningDigest())
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	tx.Signature = sig
	tx.ID = tx.ComputeID()
	return nil
}

// SigningDigest is the Keccak-512 digest of the canonical encoding of the
// economically relevant fields. It excludes the identifier, the public key and
// the signature.
func (tx *Transaction) SigningDigest() []byte {
	var b bytes.Buffer
	writeString(&b, tx.Sender)
	writeString(&b, tx.Receiver)
	writeUint64(&b, tx.Amount)
	writeUint64(&b, tx.Fee)
	writeUint64(&b, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		writeString(&b, in.TxID)
		writeUint64(&b, uint64(in.OutputIndex))
	}
	writeUint64(&b, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		writeString(&b, out.Address)
		writeUint64(&b, out.Amount)
		writeBytes(&b, out.EncryptedAmount)
	}
	writeUint64(&b, tx.Timestamp)
	return hcrypto.Keccak512(b.Bytes())
}

// ComputeID returns the hex encoded first 32 bytes of the Keccak-512 digest
// over the signed fields, the public key and the signature.
func (tx *Transaction) ComputeID() string {
	var b bytes.Buffer
	b.Write(tx.SigningDigest())
	writeBytes(&b, tx.PublicKey)
	writeBytes(&b, tx.Signature)
	return hex.EncodeToString(hcrypto.Keccak512(b.Bytes())[:32])
}

// UTXOs returns the UTXOs created by the outputs of the transaction.
func (tx *Transaction) UTXOs() []UTXO {
	res := make([]UTXO, len(tx.Outputs))
	for i, out := range tx.Outputs {
		key := UTXOKey(tx.ID, uint32(i))
		res[i] = UTXO{
			Address:      out.Address,
			Amount:       out.Amount,
			TxID:         tx.ID,
			OutputIndex:  uint32(i),
			ExplorerLink: ExplorerURL + key,
		}
	}
	return res
}

// Apply spends the inputs and inserts the outputs of the transaction in store.
func (tx *Transaction) Apply(store UTXOStore) error {
	return store.Apply(tx)
}

// VerifyWith validates the transaction against the chain and the UTXO store,
// holding the DAG read lock and then the UTXO read lock.
func (tx *Transaction) VerifyWith(ctx context.Context, chain Chain, store UTXOStore) error {
	return chain.ReadLocked(ctx, func(emission RewardSchedule) error {
		return store.View(func(utxos UTXOReader) error {
			return tx.Verify(utxos, emission)
		})
	})
}

// Verify checks the structure, authorship and economics of the transaction
// against a UTXO view and the emission schedule.
func (tx *Transaction) Verify(utxos UTXOReader, emission RewardSchedule) error {
	if err := tx.checkStructure(); err != nil {
		return err
	}

	if err := tx.checkSignature(); err != nil {
		return err
	}

	outputSum, ok := tx.outputSum()
	if !ok {
		return invalidStructure("output sum overflows")
	}

	if tx.IsCoinbase() {
		return tx.checkCoinbase(outputSum, emission)
	}

	inputSum := uint64(0)
	seen := make(map[string]bool, len(tx.Inputs))
	for _, in := range tx.Inputs {
		key := in.Key()
		if seen[key] {
			return invalidStructure("input %s is spent twice", key)
		}
		seen[key] = true

		u, ok := utxos.GetUTXO(key)
		if !ok {
			return invalidStructure("UTXO %s not found for input", key)
		}
		if u.Address != tx.Sender {
			return invalidStructure("input UTXO %s does not belong to sender %s", key, tx.Sender)
		}
		if inputSum, ok = addUint64(inputSum, u.Amount); !ok {
			return invalidStructure("input sum overflows")
		}
	}

	required, ok := addUint64(outputSum, tx.Fee)
	if !ok || inputSum < required {
		return errors.Wrapf(ErrInsufficientFunds, "inputs %d, outputs plus fee %d", inputSum, required)
	}

	if devFee := DevFee(tx.Amount); devFee > 0 && !tx.paysDevFee(devFee) {
		return errors.Wrapf(ErrMissingDevFee, "expected %d to %s", devFee, DevAddress)
	}

	return nil
}

func (tx *Transaction) checkStructure() error {
	if !IsValidAddress(tx.ID) {
		return invalidStructure("malformed id %q", tx.ID)
	}
	if tx.Sender == "" || tx.Receiver == "" {
		return invalidStructure("sender and receiver are required")
	}
	if !tx.IsCoinbase() && tx.Amount == 0 {
		return invalidStructure("transfer amount must be positive")
	}
	if len(tx.Outputs) == 0 {
		return invalidStructure("at least one output is required")
	}
	return validateAddresses(tx.Sender, tx.Receiver, tx.Outputs)
}

func (tx *Transaction) checkSignature() error {
	if len(tx.PublicKey) == 0 || len(tx.Signature) == 0 {
		return errors.Wrap(ErrInvalidSignature, "unsigned transaction")
	}
	if keys.AddressFromBytes(tx.PublicKey) != tx.Sender {
		return errors.Wrap(ErrInvalidSignature, "public key does not match sender")
	}
	if !keys.Verify(tx.PublicKey, tx.SigningDigest(), tx.Signature) {
		return ErrInvalidSignature
	}
	if tx.ComputeID() != tx.ID {
		return invalidStructure("id does not match content")
	}
	return nil
}

func (tx *Transaction) checkCoinbase(outputSum uint64, emission RewardSchedule) error {
	if tx.Fee != 0 {
		return invalidStructure("coinbase transaction fee must be 0")
	}
	if emission == nil {
		return errors.Wrap(ErrEmission, "no emission schedule")
	}
	reward, err := emission.CalculateReward(tx.Timestamp)
	if err != nil {
		return errors.Wrap(ErrEmission, err.Error())
	}
	if outputSum != reward {
		return invalidStructure("invalid coinbase output sum: expected %d, got %d", reward, outputSum)
	}
	return nil
}

func (tx *Transaction) paysDevFee(fee uint64) bool {
	for _, out := range tx.Outputs {
		if out.Address == DevAddress && out.Amount == fee {
			return true
		}
	}
	return false
}

func (tx *Transaction) outputSum() (uint64, bool) {
	sum := uint64(0)
	for _, out := range tx.Outputs {
		var ok bool
		if sum, ok = addUint64(sum, out.Amount); !ok {
			return 0, false
		}
	}
	return sum, true
}

func validateAddresses(sender, receiver string, outputs []Output) error {
	if !IsValidAddress(sender) {
		return errors.Wrapf(ErrInvalidAddress, "sender %q", sender)
	}
	if !IsValidAddress(receiver) {
		return errors.Wrapf(ErrInvalidAddress, "receiver %q", receiver)
	}
	for i, out := range outputs {
		if !IsValidAddress(out.Address) {
			return errors.Wrapf(ErrInvalidAddress, "output %d address %q", i, out.Address)
		}
	}
	return nil
}

func writeUint64(b *bytes.Buffer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.Write(buf[:])
}

func writeBytes(b *bytes.Buffer, data []byte) {
	writeUint64(b, uint64(len(data)))
	b.Write(data)
}

func writeString(b *bytes.Buffer, s string) {
	writeBytes(b, []byte(s))
}
