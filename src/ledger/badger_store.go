package ledger

import (
	"bytes"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"

	"github.com/mosaicnetworks/hyperdag/src/common"
)

const (
	utxoPrefix = "utxo_"
	txPrefix   = "tx_"
)

// BadgerUTXOStore persists the UTXO set in a Badger database. Each Apply runs
// inside one Badger read-write transaction, whose commit is atomic for
// readers. Writers are serialized so concurrent applies never conflict.
type BadgerUTXOStore struct {
	wl   sync.Mutex
	db   *badger.DB
	path string
}

// NewBadgerUTXOStore opens, or creates, the database at path.
func NewBadgerUTXOStore(path string, logger *logrus.Entry) (*BadgerUTXOStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	if logger != nil {
		opts.Logger = logger.WithField("prefix", "badger")
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerUTXOStore{
		db:   handle,
		path: path,
	}, nil
}

// StorePath returns the database directory.
func (s *BadgerUTXOStore) StorePath() string {
	return s.path
}

// View implements UTXOStore. The reader sees one consistent snapshot.
func (s *BadgerUTXOStore) View(fn func(UTXOReader) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&txnReader{txn: txn})
	})
}

// Get implements UTXOStore.
func (s *BadgerUTXOStore) Get(key string) (UTXO, error) {
	var u UTXO
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = dbGetUTXO(txn, key)
		return err
	})
	return u, mapError(err, key)
}

// Apply implements UTXOStore.
func (s *BadgerUTXOStore) Apply(tx *Transaction) error {
	return s.ApplyBatch([]*Transaction{tx})
}

// ApplyBatch implements UTXOStore.
func (s *BadgerUTXOStore) ApplyBatch(txs []*Transaction) error {
	s.wl.Lock()
	defer s.wl.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		overlay := NewOverlay(&txnReader{txn: txn})
		for _, tx := range txs {
			if err := overlay.Stage(tx); err != nil {
				return err
			}
		}

		for _, k := range overlay.Spent() {
			if err := txn.Delete(utxoKey(k)); err != nil {
				return err
			}
		}
		for _, u := range overlay.Created() {
			if err := dbSetUTXO(txn, u); err != nil {
				return err
			}
		}
		for _, id := range overlay.Transactions() {
			if err := txn.Set(txKey(id), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Insert implements UTXOStore.
func (s *BadgerUTXOStore) Insert(utxos ...UTXO) error {
	s.wl.Lock()
	defer s.wl.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		for _, u := range utxos {
			if err := dbSetUTXO(txn, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot implements UTXOStore.
func (s *BadgerUTXOStore) Snapshot() (map[string]UTXO, error) {
	res := make(map[string]UTXO)
	err := s.db.View(func(txn *badger.Txn) error {
		return iterateUTXOs(txn, func(u UTXO) {
			res[u.Key()] = u
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Len implements UTXOStore.
func (s *BadgerUTXOStore) Len() int {
	n := 0
	s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(utxoPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Close implements UTXOStore.
func (s *BadgerUTXOStore) Close() error {
	return s.db.Close()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

type txnReader struct {
	txn *badger.Txn
}

func (r *txnReader) GetUTXO(key string) (UTXO, bool) {
	u, err := dbGetUTXO(r.txn, key)
	return u, err == nil
}

// Applied implements TxIndex.
func (r *txnReader) Applied(txID string) bool {
	_, err := r.txn.Get(txKey(txID))
	return err == nil
}

func txKey(txID string) []byte {
	return []byte(txPrefix + txID)
}

func utxoKey(key string) []byte {
	return []byte(utxoPrefix + key)
}

func dbGetUTXO(txn *badger.Txn, key string) (UTXO, error) {
	var u UTXO
	item, err := txn.Get(utxoKey(key))
	if err != nil {
		return u, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return u, err
	}
	err = unmarshalUTXO(val, &u)
	return u, err
}

func dbSetUTXO(txn *badger.Txn, u UTXO) error {
	val, err := marshalUTXO(u)
	if err != nil {
		return err
	}
	return txn.Set(utxoKey(u.Key()), val)
}

func iterateUTXOs(txn *badger.Txn, fn func(UTXO)) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := []byte(utxoPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		var u UTXO
		if err := unmarshalUTXO(val, &u); err != nil {
			return err
		}
		fn(u)
	}
	return nil
}

var msgpackHandle = new(codec.MsgpackHandle)

func marshalUTXO(u UTXO) ([]byte, error) {
	var b bytes.Buffer
	if err := codec.NewEncoder(&b, msgpackHandle).Encode(u); err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}
	return b.Bytes(), nil
}

func unmarshalUTXO(data []byte, u *UTXO) error {
	if err := codec.NewDecoderBytes(data, msgpackHandle).Decode(u); err != nil {
		return errors.Wrap(ErrSerialization, err.Error())
	}
	return nil
}

func mapError(err error, key string) error {
	if err == badger.ErrKeyNotFound {
		return common.NewStoreErr("UTXO", common.KeyNotFound, key)
	}
	return err
}
