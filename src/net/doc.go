// Package net implements the peer-to-peer substrate a hyperdag node runs on.
//
// The Substrate interface is everything the node needs from the network:
// topic subscription and publication, direct delivery to a single peer, an
// ordered stream of connection, discovery and message events, and hooks into
// peer protection and the routing table. There are two implementations:
//
// - Inmem: an in-memory network used for testing
//
// - P2P: a libp2p host running gossipsub, a Kademlia DHT and, optionally,
// mDNS discovery on the local network
//
// Substrates never validate what they carry. Every gossip and direct message
// is handed to the node as raw bytes together with the identity of the peer
// that forwarded it, and the node runs it through the validation pipeline.
package net
