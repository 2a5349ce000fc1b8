package ledger

import (
	"github.com/mosaicnetworks/hyperdag/src/common"
)

// Overlay stacks pending spends and creations on top of a base reader, so a
// sequence of transactions can be validated before anything is written.
type Overlay struct {
	base    UTXOReader
	spent   map[string]bool
	created map[string]UTXO
	order   []string
	applied map[string]bool
	txs     []string
}

// NewOverlay returns an empty overlay over base.
func NewOverlay(base UTXOReader) *Overlay {
	return &Overlay{
		base:    base,
		spent:   make(map[string]bool),
		created: make(map[string]UTXO),
		applied: make(map[string]bool),
	}
}

// Applied implements TxIndex: staged transactions count as applied.
func (o *Overlay) Applied(txID string) bool {
	return o.applied[txID] || WasApplied(o.base, txID)
}

// GetUTXO implements UTXOReader.
func (o *Overlay) GetUTXO(key string) (UTXO, bool) {
	if o.spent[key] {
		return UTXO{}, false
	}
	if u, ok := o.created[key]; ok {
		return u, true
	}
	return o.base.GetUTXO(key)
}

// Stage records the effect of tx. The transaction must not have been applied
// before, every input must be present and no output may already exist;
// otherwise a StoreErr is returned and the overlay is left unchanged.
func (o *Overlay) Stage(tx *Transaction) error {
	if o.Applied(tx.ID) {
		return common.NewStoreErr("Transaction", common.KeyAlreadyExists, tx.ID)
	}

	for _, in := range tx.Inputs {
		key := UTXOKey(in.TxID, in.OutputIndex)
		if _, ok := o.GetUTXO(key); !ok {
			return common.NewStoreErr("UTXO", common.KeyNotFound, key)
		}
	}

	outs := tx.UTXOs()
	for _, u := range outs {
		if _, ok := o.GetUTXO(u.Key()); ok {
			return common.NewStoreErr("UTXO", common.KeyAlreadyExists, u.Key())
		}
	}

	for _, in := range tx.Inputs {
		key := UTXOKey(in.TxID, in.OutputIndex)
		if _, ok := o.created[key]; ok {
			delete(o.created, key)
		} else {
			o.spent[key] = true
		}
	}
	for _, u := range outs {
		o.created[u.Key()] = u
		o.order = append(o.order, u.Key())
	}
	o.applied[tx.ID] = true
	o.txs = append(o.txs, tx.ID)

	return nil
}

// Transactions returns the ids of the staged transactions, in order.
func (o *Overlay) Transactions() []string {
	return append([]string(nil), o.txs...)
}

// Spent returns the keys of base UTXOs removed by the staged transactions.
func (o *Overlay) Spent() []string {
	res := make([]string, 0, len(o.spent))
	for k := range o.spent {
		res = append(res, k)
	}
	return res
}

// Created returns the UTXOs added by the staged transactions and not spent
// again within the overlay, in creation order.
func (o *Overlay) Created() []UTXO {
	res := make([]UTXO, 0, len(o.created))
	for _, k := range o.order {
		if u, ok := o.created[k]; ok {
			res = append(res, u)
		}
	}
	return res
}
