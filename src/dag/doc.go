// Package dag holds the block DAG of a hyperdag node: accepted blocks indexed
// by id, the emission schedule that prices coinbase transactions, and the
// bounded list of recently received proposals.
//
// The DAG is guarded by a context-aware reader/writer lock. Block ingestion
// acquires the write lock with a bounded wait and gives up, without side
// effects, when the wait expires.
package dag
