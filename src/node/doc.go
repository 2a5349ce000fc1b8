// Package node runs the network side of a hyperdag node.
//
// A Node multiplexes four sources of work in a single loop: events from the
// network substrate, commands from the command queue, a mesh-health ticker
// and a peer-persistence ticker.
//
// Inbound gossip
//
// Every gossip or direct message is validated by the gossip pipeline in its
// own goroutine, so that a slow or hostile message never holds up the loop.
// The number of concurrent validations is bounded; when the bound is reached
// further messages are dropped and counted as overload.
//
// Commands
//
// Components that want something sent submit a command to the queue. The
// Processor turns each command into a signed envelope published on the topic
// of its class, or delivered directly to one peer. Commands that only signal
// the node orchestrator (sync responses and block requests) are forwarded to
// it untouched. Publication errors are logged and reported, never retried.
//
// Topology
//
// Connected and discovered peers are kept as explicit gossip peers and in the
// routing table. When any topic has fewer than MinMeshPeers peers on a mesh
// tick, the bootstrap peers are dialed again. The routing table's addresses
// are written to the peer cache on every persistence tick, and read back at
// startup.
package node
