package node

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/metrics"
	"github.com/mosaicnetworks/hyperdag/src/net"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
	"github.com/mosaicnetworks/hyperdag/src/wire"
)

// Mempool admits locally originated transactions before they are broadcast.
type Mempool interface {
	AddTransaction(ctx context.Context, tx *ledger.Transaction, utxos ledger.UTXOStore, chain ledger.Chain) error
}

// Orchestrator receives the commands the processor does not act on.
type Orchestrator interface {
	Submit(ctx context.Context, cmd command.Command) error
}

// Processor turns commands into signed envelopes and sends them.
type Processor struct {
	substrate    net.Substrate
	key          *ecdsa.PrivateKey
	secret       []byte
	network      string
	prefix       string
	mempool      Mempool
	utxos        ledger.UTXOStore
	chain        ledger.Chain
	orchestrator Orchestrator
	metrics      *metrics.Metrics
	logger       *logrus.Entry
}

// ProcessorConfig gathers the collaborators of a Processor.
type ProcessorConfig struct {
	Substrate    net.Substrate
	Key          *ecdsa.PrivateKey
	Secret       []byte
	Network      string
	TopicPrefix  string
	Mempool      Mempool
	UTXOs        ledger.UTXOStore
	Chain        ledger.Chain
	Orchestrator Orchestrator
	Metrics      *metrics.Metrics
	Logger       *logrus.Entry
}

// NewProcessor creates a Processor.
func NewProcessor(conf ProcessorConfig) *Processor {
	return &Processor{
		substrate:    conf.Substrate,
		key:          conf.Key,
		secret:       conf.Secret,
		network:      conf.Network,
		prefix:       conf.TopicPrefix,
		mempool:      conf.Mempool,
		utxos:        conf.UTXOs,
		chain:        conf.Chain,
		orchestrator: conf.Orchestrator,
		metrics:      conf.Metrics,
		logger:       conf.Logger,
	}
}

// Topic returns the topic of a class.
func (p *Processor) Topic(c ratelimit.Class) string {
	return ratelimit.Topic(p.network, p.prefix, c)
}

// Topics returns the topics of every class.
func (p *Processor) Topics() []string {
	var res []string
	for _, c := range ratelimit.Classes() {
		res = append(res, p.Topic(c))
	}
	return res
}

// Process executes a single command.
func (p *Processor) Process(ctx context.Context, cmd command.Command) error {
	switch c := cmd.(type) {
	case command.BroadcastBlock:
		return p.publish(ctx, ratelimit.ClassBlock, wire.BlockPayload{Block: c.Block})

	case command.BroadcastTransaction:
		if err := p.mempool.AddTransaction(ctx, c.Transaction, p.utxos, p.chain); err != nil {
			return errors.Wrapf(err, "transaction %s not admitted", c.Transaction.ID)
		}
		return p.publish(ctx, ratelimit.ClassTransaction, wire.TransactionPayload{Transaction: c.Transaction})

	case command.RequestState:
		return p.publish(ctx, ratelimit.ClassState, wire.StateRequestPayload{})

	case command.BroadcastState:
		return p.publish(ctx, ratelimit.ClassState, wire.StatePayload{Blocks: c.Blocks, UTXOs: c.UTXOs})

	case command.BroadcastCredential:
		return p.publish(ctx, ratelimit.ClassCredential, wire.CredentialPayload{Credential: c.Credential})

	case command.SendBlockToPeer:
		return p.sendDirect(ctx, c.Peer, wire.BlockPayload{Block: c.Block})

	case command.SyncResponse, command.RequestBlock:
		if p.orchestrator == nil {
			p.logger.WithField("command", cmd.Kind()).Debug("No orchestrator, command dropped")
			return nil
		}
		return p.orchestrator.Submit(ctx, cmd)

	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

func (p *Processor) seal(payload wire.Payload) ([]byte, error) {
	env, err := wire.Construct(payload, p.secret, p.key)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

func (p *Processor) publish(ctx context.Context, class ratelimit.Class, payload wire.Payload) error {
	data, err := p.seal(payload)
	if err != nil {
		return err
	}

	topic := p.Topic(class)
	if err := p.substrate.Publish(ctx, topic, data); err != nil {
		return errors.Wrapf(err, "publishing %s", payload.Type())
	}

	p.metrics.MessagesSent.Inc()
	p.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"payload": payload.Type(),
		"size":    len(data),
	}).Debug("Published")

	return nil
}

func (p *Processor) sendDirect(ctx context.Context, peer string, payload wire.Payload) error {
	data, err := p.seal(payload)
	if err != nil {
		return err
	}

	if err := p.substrate.SendDirect(ctx, peer, data); err != nil {
		return errors.Wrapf(err, "sending %s to %s", payload.Type(), peer)
	}

	p.metrics.MessagesSent.Inc()
	p.logger.WithFields(logrus.Fields{
		"peer":    peer,
		"payload": payload.Type(),
	}).Debug("Sent direct")

	return nil
}
