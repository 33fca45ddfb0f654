// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-harvester CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/logging"
	"github.com/pdiddy/paper-harvester/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is built by the root PersistentPreRunE. It stays a no-op unless
// --verbose or --log-json is set; summaries go to stdout either way.
var logger *zap.Logger

// rootCmd is the base command for the paper-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-harvester",
	Short: "Harvest, classify, and catalog conference papers",
	Long: `paper-harvester builds a local dataset of conference papers. It fetches
proceedings indexes, extracts paper metadata and PDFs, classifies papers
into research categories with an AI backend, and maintains a searchable
catalog of everything stored.

Each pipeline stage is a subcommand: harvest, annotate, catalog, and
verify. Stages are incremental; re-running a stage skips work that is
already done.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := buildLogger(cmd)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func buildLogger(cmd *cobra.Command) (*zap.Logger, error) {
	if logJSON, _ := cmd.Flags().GetBool("log-json"); logJSON {
		return logging.New(false)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return logging.New(true)
	}
	return zap.NewNop(), nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-harvester.yaml or ~/.config/paper-harvester/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log request and store detail to stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON lines instead of console output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-harvester"))
		}
	}

	viper.SetEnvPrefix("PAPER_HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configString resolves a setting: a flag set on the command line wins,
// then the config file (or PAPER_HARVESTER_* environment), then the flag
// default. configInt and configDuration follow the same order.
func configString(cmd *cobra.Command, flag, key string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func configInt(cmd *cobra.Command, flag, key string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func configDuration(cmd *cobra.Command, flag, key string) time.Duration {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}
