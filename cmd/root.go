package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-keymanager/pkg/beacon"
	"github.com/ethpandaops/validator-keymanager/pkg/config"
	"github.com/ethpandaops/validator-keymanager/pkg/duties"
	"github.com/ethpandaops/validator-keymanager/pkg/keymanager"
	"github.com/ethpandaops/validator-keymanager/pkg/loader"
	"github.com/ethpandaops/validator-keymanager/pkg/logging"
	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
)

var (
	log = logging.GetLogger()

	cfgFile  string
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "validator-keymanager",
	Short: "Manages validator keys.",
	Long:  `Imports and deletes validator keys, exporting slashing protection history for every deleted key.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (env KEYMANAGER_* is used when unset)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
}

func initCommon() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		loaded.LogLevel = logLevel
	}

	if err := logging.SetLogLevel(loaded.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %q", loaded.LogLevel)
	}

	if err := loaded.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	cfg = loaded

	return nil
}

// keyManager bundles the manager with the collaborators the commands touch directly.
type keyManager struct {
	*keymanager.Manager

	loader   *loader.Loader
	notifier *duties.Channel
	registry *prometheus.Registry
}

func newKeyManager(ctx context.Context) (*keyManager, error) {
	var genesisValidatorsRoot string

	if cfg.BeaconURL != "" {
		root, err := beacon.NewBeaconAPI(cfg.BeaconURL).FetchGenesisValidatorsRoot(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch genesis validators root")
		}

		genesisValidatorsRoot = root

		log.WithField("genesis_validators_root", root).Info("Using network genesis validators root")
	}

	remotes := make([]loader.RemoteValidator, 0, len(cfg.RemoteValidators))
	for _, rv := range cfg.RemoteValidators {
		remotes = append(remotes, loader.RemoteValidator{
			PublicKey: rv.PublicKey,
			URL:       rv.URL,
			ReadOnly:  rv.ReadOnly,
		})
	}

	l := loader.New(loader.Config{
		KeysDir:               cfg.KeysDir,
		PasswordsDir:          cfg.PasswordsDir,
		RemoteKeysDir:         cfg.RemoteKeysDir,
		ReadOnlyKeysDirs:      cfg.ReadOnlyKeysDirs,
		SlashingProtectionDir: cfg.SlashingProtectionDir,
		GenesisValidatorsRoot: genesisValidatorsRoot,
		RemoteValidators:      remotes,
	})

	if err := l.LoadExisting(); err != nil {
		return nil, errors.Wrap(err, "failed to load validators")
	}

	policy, err := keymanager.ParseDeletePolicy(cfg.DeletePolicy)
	if err != nil {
		return nil, err
	}

	var exporterOpts []slashing.ExporterOption
	if genesisValidatorsRoot != "" {
		exporterOpts = append(exporterOpts, slashing.WithGenesisValidatorsRoot(genesisValidatorsRoot))
	}

	notifier := duties.NewChannel()
	registry := prometheus.NewRegistry()

	manager := keymanager.New(l, notifier,
		keymanager.WithDeletePolicy(policy),
		keymanager.WithRegisterer(registry),
		keymanager.WithExporterFactory(func(dir string) keymanager.Exporter {
			return slashing.NewIncrementalExporter(dir, exporterOpts...)
		}),
	)

	return &keyManager{
		Manager:  manager,
		loader:   l,
		notifier: notifier,
		registry: registry,
	}, nil
}

// writeMetrics flushes the manager counters for the node exporter textfile collector.
func (k *keyManager) writeMetrics() {
	if cfg.MetricsTextfile == "" {
		return
	}

	if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, k.registry); err != nil {
		log.WithError(err).Warn("Failed to write metrics textfile")
	}
}
