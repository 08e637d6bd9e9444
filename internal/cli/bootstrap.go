package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flotilla-io/flotilla/internal/adapters/ec2"
	"github.com/flotilla-io/flotilla/internal/adapters/file"
	"github.com/flotilla-io/flotilla/internal/adapters/memory"
	"github.com/flotilla-io/flotilla/internal/adapters/redis"
	"github.com/flotilla-io/flotilla/internal/config"
	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/internal/remote"
	"github.com/flotilla-io/flotilla/internal/resolver"
	"github.com/flotilla-io/flotilla/pkg/ports"
)

// Options are the root command's persistent flags.
type Options struct {
	// ConfigPath overrides `~/.flotilla/config.yaml`.
	ConfigPath string

	// Region overrides the configured region.
	Region string

	// Debug enables debug-level logging.
	Debug bool
}

// App is the wired application: config, provider, resolver, sessions, and
// console rendering, built once per invocation.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Provider  ports.InventoryProvider
	Cache     ports.CacheStore
	Resolver  *resolver.Resolver
	Sessions  *remote.Manager
	Templates *file.TemplateStore
	UserData  *file.UserData
	Console   *Console
}

// Bootstrap loads configuration and wires the full engine stack.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := logging.New(level)

	path := opts.ConfigPath
	if path == "" {
		path = filepath.Join(config.DefaultDir(), "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := ec2.New(ctx, cfg.Region, cfg.Profile,
		ec2.WithLogger(logger),
		ec2.WithDefaults(cfg.Username, cfg.KeyFile),
	)
	if err != nil {
		return nil, err
	}

	templates := file.NewTemplateStore(cfg.ClustersDir())
	userdata := file.NewUserData(cfg.UserDataPath())

	if cfg.KeyFile == "" {
		name, keyPath, err := config.EnsureDefaultKeyPair(ctx, provider, userdata, cfg.KeysDir())
		if err != nil {
			return nil, err
		}
		logger.Info("using generated key pair", "key", name, "path", keyPath)
		ec2.WithDefaults(cfg.Username, keyPath)(provider)
	}

	var cache ports.CacheStore = memory.New()
	if cfg.RedisURL != "" {
		cache = redis.New(cfg.RedisURL, "", 0)
		logger.Info("using shared redis inventory cache", "addr", cfg.RedisURL)
	}

	console := NewConsole(os.Stdout)

	res := resolver.New(provider, templates, cache, resolver.WithLogger(logger))

	dialer := &remote.SSHDialer{Passphrase: remote.TerminalPassphrase}
	sessions := remote.NewManager(dialer.Dial, console,
		remote.WithManagerLogger(logger),
		remote.WithDemuxOptions(remote.WithPrefix(console.NodePrefix)),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Provider:  provider,
		Cache:     cache,
		Resolver:  res,
		Sessions:  sessions,
		Templates: templates,
		UserData:  userdata,
		Console:   console,
	}, nil
}
