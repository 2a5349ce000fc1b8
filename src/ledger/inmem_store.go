package ledger

import (
	"sync"

	"github.com/mosaicnetworks/hyperdag/src/common"
)

// InmemUTXOStore keeps the UTXO set in a map guarded by a reader/writer lock.
// Writes happen in a single critical section under the write lock.
type InmemUTXOStore struct {
	mu      sync.RWMutex
	utxos   map[string]UTXO
	applied map[string]bool
}

type inmemReader struct {
	MapReader
	applied map[string]bool
}

// Applied implements TxIndex.
func (r inmemReader) Applied(txID string) bool {
	return r.applied[txID]
}

// NewInmemUTXOStore returns an empty store.
func NewInmemUTXOStore() *InmemUTXOStore {
	return &InmemUTXOStore{
		utxos:   make(map[string]UTXO),
		applied: make(map[string]bool),
	}
}

// View implements UTXOStore.
func (s *InmemUTXOStore) View(fn func(UTXOReader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.reader())
}

// Get implements UTXOStore.
func (s *InmemUTXOStore) Get(key string) (UTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.utxos[key]
	if !ok {
		return UTXO{}, common.NewStoreErr("UTXO", common.KeyNotFound, key)
	}
	return u, nil
}

// Apply implements UTXOStore.
func (s *InmemUTXOStore) Apply(tx *Transaction) error {
	return s.ApplyBatch([]*Transaction{tx})
}

// ApplyBatch implements UTXOStore. All inputs and outputs are checked before
// the map is touched.
func (s *InmemUTXOStore) ApplyBatch(txs []*Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overlay := NewOverlay(s.reader())
	for _, tx := range txs {
		if err := overlay.Stage(tx); err != nil {
			return err
		}
	}

	for _, k := range overlay.Spent() {
		delete(s.utxos, k)
	}
	for _, u := range overlay.Created() {
		s.utxos[u.Key()] = u
	}
	for _, id := range overlay.Transactions() {
		s.applied[id] = true
	}
	return nil
}

func (s *InmemUTXOStore) reader() inmemReader {
	return inmemReader{MapReader: MapReader(s.utxos), applied: s.applied}
}

// Insert implements UTXOStore.
func (s *InmemUTXOStore) Insert(utxos ...UTXO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range utxos {
		s.utxos[u.Key()] = u
	}
	return nil
}

// Snapshot implements UTXOStore.
func (s *InmemUTXOStore) Snapshot() (map[string]UTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[string]UTXO, len(s.utxos))
	for k, u := range s.utxos {
		res[k] = u
	}
	return res, nil
}

// Len implements UTXOStore.
func (s *InmemUTXOStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.utxos)
}

// Close implements UTXOStore.
func (s *InmemUTXOStore) Close() error {
	return nil
}
