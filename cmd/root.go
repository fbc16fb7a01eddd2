// Package cmd implements the dgsync command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dgsync/internal/application/common/logging"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DGSYNC_DATABASE_HOST.
const EnvPrefix = "DGSYNC"

var (
	cfgFile string
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "dgsync",
	Short: "Discourse graph sync service",
	Long: `dgsync resolves entities from knowledge-base platforms into a shared
discourse graph store, coordinates sync tasks between workers and matches
similar content using stored embeddings.

Commands:
- api      serve the HTTP API
- worker   run the scheduled embedding sync
- migrate  create or update the database schema
- version  print build information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() { //nolint:gochecknoinits // cobra command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")
}

func initConfig() {
	loaded, err := newViper(cfgFile, rootCmd.PersistentFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
	}
	v = loaded

	if err := slogger.Configure(logging.Config{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		Output: v.GetString("log.output"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
	}
}

// newViper layers defaults, the config file, DGSYNC_* environment variables
// and the logging flags. A missing config file is not an error.
func newViper(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	nv := viper.New()
	config.SetDefaults(nv)

	if path != "" {
		nv.SetConfigFile(path)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath("./configs")
		nv.AddConfigPath(".")
	}

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if flags != nil {
		for key, flag := range map[string]string{"log.level": "log-level", "log.format": "log-format"} {
			if f := flags.Lookup(flag); f != nil {
				if err := nv.BindPFlag(key, f); err != nil {
					return nv, fmt.Errorf("failed to bind --%s: %w", flag, err)
				}
			}
		}
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nv, err
		}
	}
	return nv, nil
}

// loadConfig decodes and validates the configuration. Commands that need it
// call this themselves so that version works without a valid config.
func loadConfig() (cfg *config.Config, err error) {
	if v == nil {
		if v, err = newViper(cfgFile, rootCmd.PersistentFlags()); err != nil {
			return nil, err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return config.New(v), nil
}
