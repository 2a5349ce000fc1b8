package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mosaicnetworks/hyperdag/src/common"
	"github.com/mosaicnetworks/hyperdag/src/dag"
	"github.com/mosaicnetworks/hyperdag/src/gossip"
	"github.com/mosaicnetworks/hyperdag/src/ledger"
	"github.com/mosaicnetworks/hyperdag/src/mempool"
	"github.com/mosaicnetworks/hyperdag/src/node"
	"github.com/mosaicnetworks/hyperdag/src/node/command"
	"github.com/mosaicnetworks/hyperdag/src/peers"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// DevelopmentSecret is the MAC secret of development networks. It is public,
// so a node using it authenticates nothing.
const DevelopmentSecret = "hyperledger_secret_key_for_p2p"

// ErrConfig is returned by Validate.
var ErrConfig = errors.New("invalid configuration")

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultListenAddr       = "/ip4/0.0.0.0/tcp/9000"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultNetwork          = "hyperdag"
	DefaultTopicPrefix      = "mainnet"
	DefaultStore            = false
	DefaultMDNS             = true
	DefaultMaxMessageSize   = gossip.DefaultMaxMessageSize
	DefaultBlockLockTimeout = gossip.DefaultBlockLockTimeout
	DefaultMeshInterval     = node.DefaultMeshInterval
	DefaultPersistInterval  = node.DefaultPersistInterval
	DefaultMinMeshPeers     = node.DefaultMinMeshPeers
	DefaultMaxValidations   = node.DefaultMaxValidations
	DefaultCommandQueueSize = command.DefaultQueueSize
	DefaultMaxProposals     = dag.DefaultMaxProposals
	DefaultMempoolSize      = mempool.DefaultMaxSize
	DefaultMaxTxPerMinute   = ledger.DefaultMaxPerMinute
	DefaultSendTimeout      = node.DefaultSendTimeout
)

// Config contains all the configuration properties of a hyperdag node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the log in JSON lines.
	LogFile string `mapstructure:"log-file"`

	// Listen are the multiaddrs the libp2p host listens on.
	Listen []string `mapstructure:"listen"`

	// BootstrapPeers are full multiaddrs, including the /p2p/ component, of
	// peers to dial at startup and when the mesh thins out.
	BootstrapPeers []string `mapstructure:"bootstrap"`

	// Network and TopicPrefix namespace the gossip topics as
	// /{network}/{prefix}/{class}.
	Network     string `mapstructure:"network"`
	TopicPrefix string `mapstructure:"topic-prefix"`

	// MACSecret is the shared network secret.
	MACSecret string `mapstructure:"mac-secret"`

	// AllowInsecureSecret lets the node start with an empty or development
	// secret. Only for local testing.
	AllowInsecureSecret bool `mapstructure:"allow-insecure-secret"`

	// PeerCache is the path of the peer-address cache. Defaults to
	// peers.json in DataDir.
	PeerCache string `mapstructure:"peer-cache"`

	// Store activates the Badger UTXO store.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MDNS enables discovery on the local network.
	MDNS bool `mapstructure:"mdns"`

	// Quotas overrides the per-class rate quotas, keyed by class name
	// (blocks, transactions, state_updates, credentials).
	Quotas map[string]ratelimit.Quota `mapstructure:"quotas"`

	MaxMessageSize   int           `mapstructure:"max-message-size"`
	BlockLockTimeout time.Duration `mapstructure:"block-lock-timeout"`
	MeshInterval     time.Duration `mapstructure:"mesh-interval"`
	PersistInterval  time.Duration `mapstructure:"persist-interval"`
	MinMeshPeers     int           `mapstructure:"min-mesh-peers"`
	MaxValidations   int           `mapstructure:"max-validations"`
	CommandQueueSize int           `mapstructure:"command-queue"`
	MaxProposals     int           `mapstructure:"max-proposals"`
	MempoolSize      int           `mapstructure:"mempool-size"`
	MaxTxPerMinute   int           `mapstructure:"max-tx-per-minute"`
	SendTimeout      time.Duration `mapstructure:"send-timeout"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		Listen:           []string{DefaultListenAddr},
		Network:          DefaultNetwork,
		TopicPrefix:      DefaultTopicPrefix,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		ServiceAddr:      DefaultServiceAddr,
		MDNS:             DefaultMDNS,
		MaxMessageSize:   DefaultMaxMessageSize,
		BlockLockTimeout: DefaultBlockLockTimeout,
		MeshInterval:     DefaultMeshInterval,
		PersistInterval:  DefaultPersistInterval,
		MinMeshPeers:     DefaultMinMeshPeers,
		MaxValidations:   DefaultMaxValidations,
		CommandQueueSize: DefaultCommandQueueSize,
		MaxProposals:     DefaultMaxProposals,
		MempoolSize:      DefaultMempoolSize,
		MaxTxPerMinute:   DefaultMaxTxPerMinute,
		SendTimeout:      DefaultSendTimeout,
	}

	return config
}

// NewTestConfig returns a config object with default values, a throwaway
// secret, and a special logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.SetDataDir(t.TempDir())
	config.Listen = []string{"/ip4/127.0.0.1/tcp/0"}
	config.TopicPrefix = "testnet"
	config.MACSecret = "test secret"
	config.MDNS = false
	config.NoService = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeerCachePath returns the full path of the peer-address cache.
func (c *Config) PeerCachePath() string {
	if c.PeerCache != "" {
		return c.PeerCache
	}
	return filepath.Join(c.DataDir, peers.DefaultCacheFile)
}

// Secret applies the secret policy and returns the MAC secret. An empty or
// development secret is refused unless AllowInsecureSecret is set, in which
// case it is accepted with a warning; an empty secret then falls back to the
// development secret.
func (c *Config) Secret() ([]byte, error) {
	secret := c.MACSecret
	if secret != "" && secret != DevelopmentSecret {
		return []byte(secret), nil
	}

	if !c.AllowInsecureSecret {
		return nil, errors.Wrap(ErrConfig,
			"no network MAC secret configured; set HYPERDAG_MAC_SECRET or --mac-secret")
	}

	c.Logger().Warn("SECURITY: Using default HMAC secret. Gossip is not authenticated; never use this outside of a local test network")

	return []byte(DevelopmentSecret), nil
}

// RateQuotas returns the per-class quotas, starting from the defaults.
func (c *Config) RateQuotas() (map[ratelimit.Class]ratelimit.Quota, error) {
	quotas := ratelimit.DefaultQuotas()
	for name, q := range c.Quotas {
		class, ok := ratelimit.ParseClass(name)
		if !ok {
			return nil, errors.Wrapf(ErrConfig, "unknown quota class %q", name)
		}
		if q.Rate <= 0 || q.Burst <= 0 {
			return nil, errors.Wrapf(ErrConfig, "quota %s must have a positive rate and burst", name)
		}
		quotas[class] = q
	}
	return quotas, nil
}

// Validate checks the configuration for errors that must stop the node from
// starting, secret policy included.
func (c *Config) Validate() error {
	if len(c.Listen) == 0 {
		return errors.Wrap(ErrConfig, "no listen address")
	}
	for _, a := range c.Listen {
		if _, err := multiaddr.NewMultiaddr(a); err != nil {
			return errors.Wrapf(ErrConfig, "listen address %q: %v", a, err)
		}
	}
	for _, a := range c.BootstrapPeers {
		if _, err := multiaddr.NewMultiaddr(a); err != nil {
			return errors.Wrapf(ErrConfig, "bootstrap address %q: %v", a, err)
		}
	}
	if c.Network == "" || c.TopicPrefix == "" {
		return errors.Wrap(ErrConfig, "network and topic prefix must be set")
	}
	if c.MaxMessageSize <= 0 {
		return errors.Wrap(ErrConfig, "max message size must be positive")
	}
	if c.MeshInterval <= 0 || c.PersistInterval <= 0 {
		return errors.Wrap(ErrConfig, "mesh and persistence intervals must be positive")
	}
	if _, err := c.RateQuotas(); err != nil {
		return err
	}
	if _, err := c.Secret(); err != nil {
		return err
	}
	return nil
}

// Logger returns a formatted logrus Entry, with prefix set to "hyperdag".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "hyperdag")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level hyperdag
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Hyperdag")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Hyperdag")
		} else {
			return filepath.Join(home, ".hyperdag")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
