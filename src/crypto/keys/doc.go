// Package keys implements the public key cryptography used by hyperdag nodes.
//
// A node owns a secp256k1 key-pair. The private key signs gossip envelopes,
// transactions and carbon credentials, and seeds the node's network identity.
// The compressed public key travels with every signature so that receivers
// can verify it, and the ledger address of a key is the hex encoded
// Keccak-256 digest of that compressed form.
package keys
