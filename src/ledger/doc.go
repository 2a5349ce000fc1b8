// Package ledger implements the transaction engine of a hyperdag node.
//
// Value lives in unspent transaction outputs (UTXOs). A transfer spends UTXOs
// owned by its sender and creates new ones, one per output, keyed
// "{tx_id}_{index}". Every transfer carries a developer fee output, a fixed
// percentage of the transferred amount paid to DevAddress. A coinbase
// transaction has no inputs and mints exactly the block reward given by the
// emission schedule.
//
// Transactions are signed with the sender's secp256k1 key over a Keccak-512
// digest of their economic fields, and identified by a content hash that also
// covers the public key and signature.
//
// UTXOStore implementations apply transactions atomically: readers never see
// the inputs of a transaction removed without its outputs present, or the
// reverse.
package ledger
