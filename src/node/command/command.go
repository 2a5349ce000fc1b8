// Package command defines the closed set of instructions accepted by a node's
// command processor, and the bounded queue that carries them.
package command

import (
	"github.com/mosaicnetworks/hyperdag/src/credential"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
)

// Kind names a command variant.
type Kind string

// Command variants.
const (
	KindBroadcastBlock       Kind = "broadcast_block"
	KindBroadcastTransaction Kind = "broadcast_transaction"
	KindRequestState         Kind = "request_state"
	KindBroadcastState       Kind = "broadcast_state"
	KindBroadcastCredential  Kind = "broadcast_credential"
	KindSendBlockToPeer      Kind = "send_block_to_peer"
	KindSyncResponse         Kind = "sync_response"
	KindRequestBlock         Kind = "request_block"
)

// Command is implemented by the types of this package only.
type Command interface {
	Kind() Kind
	isCommand()
}

// BroadcastBlock publishes a block on the blocks topic.
type BroadcastBlock struct {
	Block *dag.Block
}

// BroadcastTransaction admits a transaction to the local mempool and, if
// admitted, publishes it on the transactions topic.
type BroadcastTransaction struct {
	Transaction *ledger.Transaction
}

// RequestState asks peers for a state snapshot.
type RequestState struct{}

// BroadcastState publishes a state snapshot.
type BroadcastState struct {
	Blocks map[string]*dag.Block
	UTXOs  map[string]ledger.UTXO
}

// BroadcastCredential publishes a carbon credential.
type BroadcastCredential struct {
	Credential *credential.Credential
}

// SendBlockToPeer delivers a block to a single peer over a direct stream.
type SendBlockToPeer struct {
	Peer  string
	Block *dag.Block
}

// SyncResponse carries a snapshot received from a peer. Reconciling it with
// local state belongs to the orchestrator.
type SyncResponse struct {
	From   string
	Blocks map[string]*dag.Block
	UTXOs  map[string]ledger.UTXO
}

// RequestBlock asks a peer for a block. Serving it belongs to the
// orchestrator.
type RequestBlock struct {
	BlockID string
	PeerID  string
}

func (BroadcastBlock) Kind() Kind       { return KindBroadcastBlock }
func (BroadcastTransaction) Kind() Kind { return KindBroadcastTransaction }
func (RequestState) Kind() Kind         { return KindRequestState }
func (BroadcastState) Kind() Kind       { return KindBroadcastState }
func (BroadcastCredential) Kind() Kind  { return KindBroadcastCredential }
func (SendBlockToPeer) Kind() Kind      { return KindSendBlockToPeer }
func (SyncResponse) Kind() Kind         { return KindSyncResponse }
func (RequestBlock) Kind() Kind         { return KindRequestBlock }

func (BroadcastBlock) isCommand()       {}
func (BroadcastTransaction) isCommand() {}
func (RequestState) isCommand()         {}
func (BroadcastState) isCommand()       {}
func (BroadcastCredential) isCommand()  {}
func (SendBlockToPeer) isCommand()      {}
func (SyncResponse) isCommand()         {}
func (RequestBlock) isCommand()         {}
