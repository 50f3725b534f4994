package cli

import (
	"context"
	"fmt"

	"github.com/ooyala/my-sequel-synchrony/internal"
	"github.com/spf13/cobra"
)

type ctxKey string

const poolCfgKey ctxKey = "poolConfig"

func NewRootCommand() *cobra.Command {
	var poolConfigPath string
	var logLevelFlag string

	rootCmd := &cobra.Command{
		Use:   "spool",
		Short: "spool is a sharded connection pool for named backends",
		Long:  `spool manages bounded pools of reusable backend connections and routes borrow requests across named shards, falling back to a default backend for unknown names.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadPoolConfig(poolConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load pool config: %w", err)
			}

			if logLevelFlag != "" {
				cfg.LogLevel = logLevelFlag
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in pool config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			ctx := context.WithValue(cmd.Context(), poolCfgKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&poolConfigPath, "pool-config", "", "Path to pool config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(DemoCommand())
	rootCmd.AddCommand(ConfigCommand())

	return rootCmd
}

// Helper function for subcommands to get the loaded pool config
func GetPoolConfig(cmd *cobra.Command) *internal.PoolConfig {
	if v := cmd.Context().Value(poolCfgKey); v != nil {
		if cfg, ok := v.(*internal.PoolConfig); ok {
			return cfg
		}
	}
	return nil
}
