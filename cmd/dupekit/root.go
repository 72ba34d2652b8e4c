package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dupekit/dupekit/dedup"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dupekit",
		Short:         "Find and reconcile byte-identical files across directory trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			dedup.InitLogger(viper.GetString("log-dir"))
		},
	}

	root.PersistentFlags().String("log-dir", "", "directory for rotated log files (empty: console only)")
	root.PersistentFlags().String("cache-path", "", "hash cache database file (default: ~/.dupekit/hashcache.db)")
	viper.BindPFlag("log-dir", root.PersistentFlags().Lookup("log-dir"))       //nolint:errcheck
	viper.BindPFlag("cache-path", root.PersistentFlags().Lookup("cache-path")) //nolint:errcheck

	viper.SetEnvPrefix("DUPEKIT")
	viper.AutomaticEnv()

	root.AddCommand(scanCmd(), cacheCmd())
	return root
}

// buildConfig assembles a scan config from defaults plus viper overrides.
func buildConfig() dedup.Config {
	cfg := dedup.DefaultConfig()
	if p := viper.GetString("cache-path"); p != "" {
		cfg.CachePath = p
	}
	return cfg
}
