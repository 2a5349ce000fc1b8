package dag

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
)

// Block groups transactions on top of one or more parent blocks.
type Block struct {
	ID           string                `json:"id"`
	Height       uint64                `json:"height"`
	Parents      []string              `json:"parents"`
	Validator    string                `json:"validator"`
	Miner        string                `json:"miner"`
	Transactions []*ledger.Transaction `json:"transactions"`
	Timestamp    uint64                `json:"timestamp"`
}

// NewBlock creates a block and computes its id.
func NewBlock(height uint64, parents []string, validator, miner string, txs []*ledger.Transaction, timestamp uint64) *Block {
	b := &Block{
		Height:       height,
		Parents:      parents,
		Validator:    validator,
		Miner:        miner,
		Transactions: txs,
		Timestamp:    timestamp,
	}
	b.ID = b.ComputeID()
	return b
}

// ComputeID returns the hex encoded SHA256 of the block header and the ids of
// its transactions.
func (b *Block) ComputeID() string {
	var buf bytes.Buffer
	var n [8]byte

	put := func(v uint64) {
		binary.BigEndian.PutUint64(n[:], v)
		buf.Write(n[:])
	}
	str := func(s string) {
		put(uint64(len(s)))
		buf.WriteString(s)
	}

	put(b.Height)
	put(uint64(len(b.Parents)))
	for _, p := range b.Parents {
		str(p)
	}
	str(b.Validator)
	str(b.Miner)
	ids := b.TransactionIDs()
	put(uint64(len(ids)))
	for _, id := range ids {
		str(id)
	}
	put(b.Timestamp)

	return hex.EncodeToString(hcrypto.SHA256(buf.Bytes()))
}

// TransactionIDs returns the ids of the block's transactions.
func (b *Block) TransactionIDs() []string {
	res := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		res[i] = tx.ID
	}
	return res
}
