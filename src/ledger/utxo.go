package ledger

import "fmt"

// ExplorerURL prefixes the explorer link of every UTXO.
const ExplorerURL = "https://hyperblockexplorer.org/utxo/"

// UTXO is an unspent output.
type UTXO struct {
	Address      string `json:"address"`
	Amount       uint64 `json:"amount"`
	TxID         string `json:"tx_id"`
	OutputIndex  uint32 `json:"output_index"`
	ExplorerLink string `json:"explorer_link"`
}

// Key returns the store key of the UTXO.
func (u UTXO) Key() string {
	return UTXOKey(u.TxID, u.OutputIndex)
}

// UTXOKey returns the store key "{tx_id}_{index}".
func UTXOKey(txID string, index uint32) string {
	return fmt.Sprintf("%s_%d", txID, index)
}

// UTXOReader gives read access to a set of UTXOs.
type UTXOReader interface {
	GetUTXO(key string) (UTXO, bool)
}

// TxIndex is implemented by readers that remember which transactions were
// applied, so that a transaction whose outputs are all spent cannot be applied
// again.
type TxIndex interface {
	Applied(txID string) bool
}

// WasApplied reports whether r knows txID as applied. Readers without an
// index know nothing.
func WasApplied(r UTXOReader, txID string) bool {
	if idx, ok := r.(TxIndex); ok {
		return idx.Applied(txID)
	}
	return false
}

// UTXOStore is the UTXO set of a node.
type UTXOStore interface {
	// View runs fn with a consistent read-only view of the set.
	View(fn func(UTXOReader) error) error

	// Get returns the UTXO stored under key, or a KeyNotFound StoreErr.
	Get(key string) (UTXO, error)

	// Apply atomically spends the inputs of tx, inserts its outputs and
	// records its id. A transaction is applied at most once.
	Apply(tx *Transaction) error

	// ApplyBatch applies txs in order, all or nothing.
	ApplyBatch(txs []*Transaction) error

	// Insert adds UTXOs directly, for genesis allocations and state sync.
	Insert(utxos ...UTXO) error

	// Snapshot copies the whole set.
	Snapshot() (map[string]UTXO, error)

	Len() int
	Close() error
}

// MapReader adapts a plain map to UTXOReader.
type MapReader map[string]UTXO

// GetUTXO implements UTXOReader.
func (m MapReader) GetUTXO(key string) (UTXO, bool) {
	u, ok := m[key]
	return u, ok
}
