package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nodevfs/internal/config"
	"github.com/matzehuels/nodevfs/pkg/buildinfo"
	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/fetch"
	"github.com/matzehuels/nodevfs/pkg/install"
	"github.com/matzehuels/nodevfs/pkg/observability"
	"github.com/matzehuels/nodevfs/pkg/registry"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "nodevfs"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	noCache    bool
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "nodevfs installs npm dependencies into a virtual file tree",
		Long:         `nodevfs resolves npm dependencies, downloads their archives, and hoists them into a flattened node_modules mapping that an in-memory bundler can consume without a real filesystem.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/nodevfs/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the durable package cache")

	// Register all subcommands
	root.AddCommand(c.installCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Engine Factory
// =============================================================================

// engine bundles the components one command needs.
type engine struct {
	resolver  *registry.Resolver
	fetcher   *fetch.Fetcher
	installer *install.Installer
	durable   cache.Cache
	hooks     *logHooks
}

func (e *engine) Close() error { return e.durable.Close() }

// newEngine wires the registry client, both cache tiers, and the installer
// from the loaded configuration.
func (c *CLI) newEngine(ctx context.Context) (*engine, error) {
	hooks := &logHooks{logger: c.Logger}
	observability.SetHTTPHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetInstallHooks(hooks)

	durable, err := c.openCache(ctx)
	if err != nil {
		return nil, err
	}

	client := registry.NewClient(c.cfg.RegistryClient())
	resolver := registry.NewResolver(client)
	store := fetch.NewStore(fetch.StoreConfig{
		Durable: durable,
		Keyer:   c.cfg.Cache.Keyer(),
		TTL:     c.cfg.Cache.TTL,
		Logger:  c.Logger,
	})
	fetcher := fetch.NewFetcher(client, store, c.Logger)

	return &engine{
		resolver:  resolver,
		fetcher:   fetcher,
		installer: install.New(resolver, fetcher, c.cfg.InstallOptions(c.Logger)),
		durable:   durable,
		hooks:     hooks,
	}, nil
}

func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	durable, err := c.cfg.Cache.OpenCache(ctx)
	if err != nil {
		c.Logger.Warn("durable cache unavailable, continuing without it", "backend", c.cfg.Cache.Backend, "err", err)
		return cache.NewNullCache(), nil
	}
	return durable, nil
}
