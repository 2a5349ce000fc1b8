// Package peers persists the addresses of known peers so that a restarted
// node can reconnect without relying on discovery alone.
//
// The cache is a small JSON file:
//
//	{
//	  "peers": [
//	    "/ip4/10.0.0.2/tcp/9000/p2p/16Uiu2HAm...",
//	    ...
//	  ]
//	}
//
// It is rewritten periodically from the routing table and read once at
// startup.
package peers
