package hyperdag

import (
	"context"
	"strconv"
)

// stats adds the ledger figures to the node statistics served by the API.
type stats struct {
	h *Hyperdag
}

func (s *stats) GetStats() map[string]string {
	res := s.h.Node.GetStats()

	ctx, cancel := context.WithTimeout(context.Background(), s.h.Config.BlockLockTimeout)
	defer cancel()

	if blocks, height, err := s.h.DAG.Stats(ctx); err == nil {
		res["blocks"] = strconv.Itoa(blocks)
		res["height"] = strconv.FormatUint(height, 10)
	}

	res["mempool"] = strconv.Itoa(s.h.Mempool.Len())
	res["utxos"] = strconv.Itoa(s.h.UTXOs.Len())
	res["credentials"] = strconv.Itoa(s.h.Credentials.Len())
	res["blacklisted"] = strconv.Itoa(s.h.Blacklist.Len())

	return res
}

func (s *stats) GetPeers() []string {
	return s.h.Node.GetPeers()
}
