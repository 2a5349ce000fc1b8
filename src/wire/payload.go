package wire

import (
	"fmt"

	"github.com/mosaicnetworks/hyperdag/src/credential"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
)

// PayloadType tags the variant of a payload on the wire.
type PayloadType string

// Payload variants.
const (
	TypeBlock        PayloadType = "block"
	TypeTransaction  PayloadType = "transaction"
	TypeState        PayloadType = "state"
	TypeStateRequest PayloadType = "state_request"
	TypeCredential   PayloadType = "carbon_credential"
)

// Payload is the closed set of messages carried by an envelope. Only the
// types of this package implement it.
type Payload interface {
	Type() PayloadType
	isPayload()
}

// BlockPayload announces a block.
type BlockPayload struct {
	Block *dag.Block
}

// TransactionPayload announces a transaction.
type TransactionPayload struct {
	Transaction *ledger.Transaction
}

// StatePayload is a state snapshot: blocks and UTXOs by id.
type StatePayload struct {
	Blocks map[string]*dag.Block
	UTXOs  map[string]ledger.UTXO
}

// StateRequestPayload asks peers for their state.
type StateRequestPayload struct{}

// CredentialPayload announces a carbon credential.
type CredentialPayload struct {
	Credential *credential.Credential
}

func (BlockPayload) Type() PayloadType        { return TypeBlock }
func (TransactionPayload) Type() PayloadType  { return TypeTransaction }
func (StatePayload) Type() PayloadType        { return TypeState }
func (StateRequestPayload) Type() PayloadType { return TypeStateRequest }
func (CredentialPayload) Type() PayloadType   { return TypeCredential }

func (BlockPayload) isPayload()        {}
func (TransactionPayload) isPayload()  {}
func (StatePayload) isPayload()        {}
func (StateRequestPayload) isPayload() {}
func (CredentialPayload) isPayload()   {}

// Body is the tagged wire form of a Payload. Exactly the fields of the tagged
// variant are set.
type Body struct {
	Type        PayloadType            `json:"type"`
	Block       *dag.Block             `json:"block,omitempty"`
	Transaction *ledger.Transaction    `json:"transaction,omitempty"`
	Blocks      map[string]*dag.Block  `json:"blocks,omitempty"`
	UTXOs       map[string]ledger.UTXO `json:"utxos,omitempty"`
	Credential  *credential.Credential `json:"credential,omitempty"`
}

// NewBody converts a payload to its wire form.
func NewBody(p Payload) (Body, error) {
	switch v := p.(type) {
	case BlockPayload:
		if v.Block == nil {
			return Body{}, fmt.Errorf("nil block")
		}
		return Body{Type: TypeBlock, Block: v.Block}, nil
	case TransactionPayload:
		if v.Transaction == nil {
			return Body{}, fmt.Errorf("nil transaction")
		}
		return Body{Type: TypeTransaction, Transaction: v.Transaction}, nil
	case StatePayload:
		return Body{Type: TypeState, Blocks: v.Blocks, UTXOs: v.UTXOs}, nil
	case StateRequestPayload:
		return Body{Type: TypeStateRequest}, nil
	case CredentialPayload:
		if v.Credential == nil {
			return Body{}, fmt.Errorf("nil credential")
		}
		return Body{Type: TypeCredential, Credential: v.Credential}, nil
	default:
		return Body{}, fmt.Errorf("unknown payload %T", p)
	}
}

// Payload converts the wire form back to a payload, checking that the fields
// match the tag.
func (b Body) Payload() (Payload, error) {
	switch b.Type {
	case TypeBlock:
		if b.Block == nil || b.Transaction != nil || b.Credential != nil || b.Blocks != nil || b.UTXOs != nil {
			return nil, fmt.Errorf("fields do not match type %s", b.Type)
		}
		if err := checkBlock(b.Block); err != nil {
			return nil, err
		}
		return BlockPayload{Block: b.Block}, nil
	case TypeTransaction:
		if b.Transaction == nil || b.Block != nil || b.Credential != nil || b.Blocks != nil || b.UTXOs != nil {
			return nil, fmt.Errorf("fields do not match type %s", b.Type)
		}
		return TransactionPayload{Transaction: b.Transaction}, nil
	case TypeState:
		if b.Block != nil || b.Transaction != nil || b.Credential != nil {
			return nil, fmt.Errorf("fields do not match type %s", b.Type)
		}
		for id, blk := range b.Blocks {
			if blk == nil {
				return nil, fmt.Errorf("nil block %s in state", id)
			}
			if err := checkBlock(blk); err != nil {
				return nil, err
			}
		}
		return StatePayload{Blocks: b.Blocks, UTXOs: b.UTXOs}, nil
	case TypeStateRequest:
		if b.Block != nil || b.Transaction != nil || b.Credential != nil || b.Blocks != nil || b.UTXOs != nil {
			return nil, fmt.Errorf("fields do not match type %s", b.Type)
		}
		return StateRequestPayload{}, nil
	case TypeCredential:
		if b.Credential == nil || b.Block != nil || b.Transaction != nil || b.Blocks != nil || b.UTXOs != nil {
			return nil, fmt.Errorf("fields do not match type %s", b.Type)
		}
		return CredentialPayload{Credential: b.Credential}, nil
	default:
		return nil, fmt.Errorf("unknown payload type %q", b.Type)
	}
}

func checkBlock(b *dag.Block) error {
	for i, tx := range b.Transactions {
		if tx == nil {
			return fmt.Errorf("nil transaction %d in block %s", i, b.ID)
		}
	}
	return nil
}
