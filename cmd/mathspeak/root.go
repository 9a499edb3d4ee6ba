package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/mathspeak"
	"github.com/aretw0/mathspeak/internal/config"
	"github.com/aretw0/mathspeak/internal/logging"
	rediscache "github.com/aretw0/mathspeak/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mathspeak",
		Short:         "mathspeak speaks classified math trees",
		Long:          `mathspeak turns semantic math trees into spoken text, SSML or structured descriptions using YAML speech rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a mathspeak.yaml config file")
	flags.String("domain", "", "Speech domain (default from config)")
	flags.String("style", "", "Speech style (default from config)")
	flags.StringSlice("rules", nil, "Rule directories, loaded in order after the built-in rules")
	flags.Bool("no-builtin", false, "Do not load the built-in rule sets")
	flags.Bool("no-cache", false, "Disable the result cache")
	flags.String("redis", "", "Redis address for a shared result cache")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")

	root.AddCommand(newSpeakCmd(), newValidateCmd(), newRulesCmd(), newServeCmd(), newMCPCmd(), newVersionCmd())
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// settings merges the config file with the flags the user set explicitly.
func settings(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("domain") {
		cfg.Domain, _ = flags.GetString("domain")
	}
	if flags.Changed("style") {
		cfg.Style, _ = flags.GetString("style")
	}
	if flags.Changed("rules") {
		cfg.Rules, _ = flags.GetStringSlice("rules")
	}
	if v, _ := flags.GetBool("no-builtin"); v {
		cfg.Builtin = false
	}
	if v, _ := flags.GetBool("no-cache"); v {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("redis") {
		addr, _ := flags.GetString("redis")
		if cfg.Redis == nil {
			cfg.Redis = &config.Redis{}
		}
		cfg.Redis.Addr = addr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	return logging.NewWriter(w, level, format)
}

// buildEngine creates the engine described by cfg and loads its rule directories.
// The returned func releases the cache backend.
func buildEngine(cmd *cobra.Command, cfg config.Config, logger *slog.Logger, extra ...mathspeak.Option) (*mathspeak.Engine, func(), error) {
	opts := []mathspeak.Option{
		mathspeak.WithDomain(cfg.Domain),
		mathspeak.WithStyle(cfg.Style),
		mathspeak.WithMaxDepth(cfg.MaxDepth),
		mathspeak.WithCache(cfg.Cache.Enabled),
		mathspeak.WithCacheSize(cfg.Cache.Size),
		mathspeak.WithLogger(logger),
	}
	if !cfg.Builtin {
		opts = append(opts, mathspeak.WithoutBuiltinRules())
	}

	release := func() {}
	if cfg.Redis != nil && cfg.Cache.Enabled {
		var ropts []rediscache.Option
		if cfg.Redis.Prefix != "" {
			ropts = append(ropts, rediscache.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			ropts = append(ropts, rediscache.WithTTL(cfg.Redis.TTL))
		}
		cache := rediscache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ropts...)
		opts = append(opts, mathspeak.WithResultCache(cache))
		release = func() {
			if err := cache.Close(); err != nil {
				logger.Warn("closing redis cache", "err", err)
			}
		}
	}
	opts = append(opts, extra...)

	eng, err := mathspeak.New(opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	if len(cfg.Rules) > 0 {
		if err := eng.LoadRuleFiles(cmd.Context(), cfg.Rules...); err != nil {
			release()
			return nil, nil, err
		}
	}
	return eng, release, nil
}
