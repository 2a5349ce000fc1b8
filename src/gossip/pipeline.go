// Package gossip validates inbound gossip messages and hands the authenticated
// payloads to the components that own them.
//
// Every message goes through the same steps, stopping at the first failure:
//
//	blacklist -> topic class -> size -> rate -> decode -> authenticate -> dispatch
//
// The cheap checks run first so that hostile traffic costs as little as
// possible. Rate violations and authentication failures blacklist the
// forwarding peer; malformed bytes and rejected payloads do not.
package gossip

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/metrics"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
	"github.com/mosaicnetworks/hyperdag/src/wire"
)

// Pipeline errors. Rate, decoding and authentication failures are reported
// with ratelimit.ErrRateExceeded, wire.ErrMalformed and wire.ErrAuthentication.
var (
	ErrBlacklisted = errors.New("peer is blacklisted")
	ErrOversize    = errors.New("message exceeds the maximum size")
)

// Defaults.
const (
	DefaultMaxMessageSize   = 2000000
	DefaultBlockLockTimeout = 500 * time.Millisecond
)

// Message is an inbound gossip message as delivered by the network substrate.
// From is the peer that forwarded it to us.
type Message struct {
	ID    string
	From  string
	Topic string
	Data  []byte
}

// Dispatcher receives authenticated payloads.
type Dispatcher interface {
	Dispatch(ctx context.Context, from string, payload wire.Payload) error
}

// Config parameterizes a Pipeline.
type Config struct {
	Secret         []byte
	MaxMessageSize int
}

// Pipeline is safe for concurrent use; the node runs one Process call per
// inbound message.
type Pipeline struct {
	conf       Config
	limiter    *ratelimit.Limiter
	blacklist  *ratelimit.Blacklist
	metrics    *metrics.Metrics
	dispatcher Dispatcher
	logger     *logrus.Entry
}

// NewPipeline wires a Pipeline.
func NewPipeline(conf Config,
	limiter *ratelimit.Limiter,
	blacklist *ratelimit.Blacklist,
	m *metrics.Metrics,
	dispatcher Dispatcher,
	logger *logrus.Entry) *Pipeline {

	if conf.MaxMessageSize <= 0 {
		conf.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Pipeline{
		conf:       conf,
		limiter:    limiter,
		blacklist:  blacklist,
		metrics:    m,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Process runs msg through the validation steps and dispatches its payload.
// The returned error says why the message was dropped.
func (p *Pipeline) Process(ctx context.Context, msg Message) error {
	logger := p.logger.WithFields(logrus.Fields{
		"peer":  msg.From,
		"topic": msg.Topic,
	})

	if p.blacklist.Contains(msg.From) {
		p.metrics.Dropped(metrics.ReasonBlacklisted)
		logger.Debug("Dropping message from blacklisted peer")
		return ErrBlacklisted
	}

	class, known := ratelimit.ClassifyTopic(msg.Topic)
	if !known {
		class = p.limiter.Strictest()
	}

	if len(msg.Data) > p.conf.MaxMessageSize {
		p.metrics.Dropped(metrics.ReasonOversize)
		logger.WithField("size", len(msg.Data)).Warn("Dropping oversize message")
		return errors.Wrapf(ErrOversize, "%d > %d bytes", len(msg.Data), p.conf.MaxMessageSize)
	}

	if err := p.limiter.CheckAndRecord(msg.From, class); err != nil {
		p.metrics.Dropped(metrics.ReasonRate)
		p.ban(logger, msg.From, "rate exceeded on "+class.String())
		return err
	}

	env, err := wire.Decode(msg.Data)
	if err != nil {
		p.metrics.Dropped(metrics.ReasonMalformed)
		logger.WithError(err).Warn("Dropping malformed message")
		return err
	}

	payload, err := wire.Verify(env, p.conf.Secret)
	if err != nil {
		if errors.Is(err, wire.ErrAuthentication) {
			p.metrics.Dropped(metrics.ReasonAuth)
			p.ban(logger, msg.From, err.Error())
			return err
		}
		p.metrics.Dropped(metrics.ReasonMalformed)
		logger.WithError(err).Warn("Dropping authenticated message with malformed payload")
		return err
	}

	p.metrics.MessagesReceived.Inc()

	if err := p.dispatcher.Dispatch(ctx, msg.From, payload); err != nil {
		p.metrics.Dropped(metrics.ReasonRejected)
		logger.WithError(err).WithField("payload", payload.Type()).Info("Payload rejected")
		return err
	}

	return nil
}

func (p *Pipeline) ban(logger *logrus.Entry, peer, reason string) {
	if p.blacklist.Add(peer, reason) {
		p.metrics.PeersBlacklisted.Inc()
		logger.WithField("reason", reason).Warn("Peer blacklisted")
	}
}
