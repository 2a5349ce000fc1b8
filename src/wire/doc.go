// Package wire defines the signed envelope that carries every gossip payload
// between hyperdag nodes.
//
// An envelope holds the canonical encoding of a payload, an HMAC-SHA256 of
// that encoding under the network's shared secret, and a secp256k1 signature
// of its SHA256 digest together with the sender's public key. The MAC proves
// membership of the network; the signature proves authorship. A receiver
// checks the MAC first and the signature second, and a failure of either
// rejects the message.
package wire
