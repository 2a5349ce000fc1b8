// Package config defines the configuration for a hyperdag node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, a node relies on a data directory, defined by Config.DataDir, where
// it keeps a few files:
//
//  priv_key // a plain text file containing the raw private key (cf. hyperdag keygen).
//  peers.json // the peer-address cache, rewritten periodically.
//  hyperdag.toml // (optional) configuration file, same keys as the command line flags.
//  badger_db // the UTXO database, when --store is set.
//
// The MAC secret authenticates every gossip message and must be shared by all
// the nodes of a network. It is usually provided through the environment
// (HYPERDAG_MAC_SECRET). A node refuses to start with an empty secret or with
// the well-known development secret unless --allow-insecure-secret is set.
package config
