package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/hyperdag/src/common"
)

// Defaults
const (
	DefaultMeshInterval    = 60 * time.Second
	DefaultPersistInterval = 300 * time.Second
	DefaultMinMeshPeers    = 1
	DefaultMaxValidations  = 256
	DefaultSendTimeout     = 10 * time.Second
)

// Config holds the node settings.
type Config struct {
	// Network and TopicPrefix namespace the gossip topics.
	Network     string
	TopicPrefix string

	// BootstrapPeers are dialed at startup and whenever the mesh is too
	// thin.
	BootstrapPeers []string

	MinMeshPeers    int
	MeshInterval    time.Duration
	PersistInterval time.Duration

	// MaxValidations bounds the number of messages validated concurrently.
	MaxValidations int

	// SendTimeout bounds publication and direct sends.
	SendTimeout time.Duration

	Logger *logrus.Entry
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() *Config {
	return &Config{
		Network:         "hyperdag",
		TopicPrefix:     "mainnet",
		MinMeshPeers:    DefaultMinMeshPeers,
		MeshInterval:    DefaultMeshInterval,
		PersistInterval: DefaultPersistInterval,
		MaxValidations:  DefaultMaxValidations,
		SendTimeout:     DefaultSendTimeout,
		Logger:          logrus.NewEntry(logrus.New()),
	}
}

// TestConfig returns a configuration with fast tickers and a test logger.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.TopicPrefix = "testnet"
	config.MeshInterval = 20 * time.Millisecond
	config.PersistInterval = 20 * time.Millisecond
	config.SendTimeout = time.Second
	config.Logger = common.NewTestEntry(t, logrus.DebugLevel)
	return config
}
