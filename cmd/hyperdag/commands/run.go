package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mosaicnetworks/hyperdag/src/hyperdag"
)

//NewRunCmd returns the command that starts a hyperdag node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runHyperdag,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runHyperdag(cmd *cobra.Command, args []string) error {
	engine := hyperdag.New(&_config.Hyperdag)

	if err := engine.Init(); err != nil {
		_config.Hyperdag.Logger().Error("Cannot initialize engine: ", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Run(ctx)

	stop()
	engine.Shutdown()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	c := &_config.Hyperdag

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write the log to this file, in JSON")

	// Network
	cmd.Flags().StringSliceP("listen", "l", c.Listen, "Listen multiaddrs for the p2p host")
	cmd.Flags().StringSliceP("bootstrap", "b", c.BootstrapPeers, "Multiaddrs, with /p2p/ component, of bootstrap peers")
	cmd.Flags().String("network", c.Network, "Network name, first component of gossip topics")
	cmd.Flags().String("topic-prefix", c.TopicPrefix, "Topic prefix, like mainnet or testnet")
	cmd.Flags().Bool("mdns", c.MDNS, "Discover peers on the local network")
	cmd.Flags().String("peer-cache", c.PeerCache, "Peer address cache (default [datadir]/peers.json)")
	cmd.Flags().Int("min-mesh-peers", c.MinMeshPeers, "Redial bootstrap peers when a topic has fewer peers")
	cmd.Flags().Duration("mesh-interval", c.MeshInterval, "Time between mesh health checks")
	cmd.Flags().Duration("persist-interval", c.PersistInterval, "Time between peer cache writes")
	cmd.Flags().Duration("send-timeout", c.SendTimeout, "Timeout of publications and direct sends")

	// Security
	cmd.Flags().String("mac-secret", c.MACSecret, "Shared network secret authenticating gossip (prefer HYPERDAG_MAC_SECRET)")
	cmd.Flags().Bool("allow-insecure-secret", c.AllowInsecureSecret, "Start even with an empty or development secret")
	cmd.Flags().Int("max-message-size", c.MaxMessageSize, "Largest accepted gossip message, in bytes")
	cmd.Flags().Int("max-validations", c.MaxValidations, "Messages validated concurrently")

	// Service
	cmd.Flags().StringP("service-listen", "s", c.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", c.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", c.Store, "Use badgerDB instead of in-mem UTXO store")
	cmd.Flags().String("db", c.DatabaseDir, "Dabatabase directory")

	// Ledger
	cmd.Flags().Duration("block-lock-timeout", c.BlockLockTimeout, "Longest wait for the DAG lock when adding a block")
	cmd.Flags().Int("command-queue", c.CommandQueueSize, "Size of the command queue")
	cmd.Flags().Int("max-proposals", c.MaxProposals, "Block proposals kept in memory")
	cmd.Flags().Int("mempool-size", c.MempoolSize, "Transactions kept in the mempool")
	cmd.Flags().Int("max-tx-per-minute", c.MaxTxPerMinute, "Transactions admitted per minute, node wide")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Hyperdag.SetDataDir(_config.Hyperdag.DataDir)

	c := &_config.Hyperdag

	logFields := logrus.Fields{
		"DataDir":        c.DataDir,
		"Listen":         c.Listen,
		"BootstrapPeers": c.BootstrapPeers,
		"Network":        c.Network,
		"TopicPrefix":    c.TopicPrefix,
		"MDNS":           c.MDNS,
		"PeerCache":      c.PeerCachePath(),
		"ServiceAddr":    c.ServiceAddr,
		"NoService":      c.NoService,
		"Store":          c.Store,
		"LogLevel":       c.LogLevel,
		"MaxMessageSize": c.MaxMessageSize,
		"MeshInterval":   c.MeshInterval,
		"Quotas":         c.Quotas,
	}

	if c.Store {
		logFields["DatabaseDir"] = c.DatabaseDir
	}

	c.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// HYPERDAG_MAC_SECRET, HYPERDAG_BOOTSTRAP, ...
	viper.SetEnvPrefix("hyperdag")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/hyperdag.toml (.json, .yaml also work)
	viper.SetConfigName("hyperdag")               // name of config file (without extension)
	viper.AddConfigPath(_config.Hyperdag.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Hyperdag.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Hyperdag.Logger().Debugf("No config file found in: %s", _config.Hyperdag.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
