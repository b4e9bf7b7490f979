// Package cmd provides the command-line interface for ssg.
//
// Configuration is read, from lowest to highest priority, from .ssg.yml
// (or the file named by --config or SSG_CONFIG_FILE), SSG_<SECTION>_<OPTION>
// environment variables such as SSG_SERVER_PORT, and command-line flags.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/ssg/internal/config"
	"github.com/conneroisu/ssg/internal/logging"
)

type rootOptions struct {
	cfgFile string
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ssg",
		Short: "Preview server with live reload for a static site generator",
		Long: `ssg builds a static site with an external generator, serves the output
directory, and reloads connected browsers whenever a source file changes.

Quick Start:
  ssg serve                 Build, serve on :5000 and watch for changes
  ssg build                 Build once without drafts
  ssg config show           Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is .ssg.yml, can also use SSG_CONFIG_FILE env var)")
	addLoggingFlags(flags)

	rootCmd.AddCommand(
		newServeCmd(opts),
		newBuildCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// bindFlags points viper keys at the command's flags. Binding happens per
// invocation because serve and build bind the same keys with different
// defaults.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}

	return nil
}

func addLoggingFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "also write logs to this file, rotated by size")
}

var loggingFlags = map[string]string{
	"logging.level":  "log-level",
	"logging.format": "log-format",
	"logging.file":   "log-file",
}

// loadConfig reads the configuration file and binds the global flags plus
// keys. Validation is left to the caller's choice of config.Load or
// config.Decode.
func loadConfig(cmd *cobra.Command, opts *rootOptions, keys map[string]string) error {
	used, err := config.Init(viper.GetViper(), opts.cfgFile)
	if err != nil {
		return err
	}
	if used != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", used)
	}

	if err := bindFlags(cmd, loggingFlags); err != nil {
		return err
	}

	return bindFlags(cmd, keys)
}

func newLogger(cfg *config.Config) *logging.SiteLogger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output = os.Stderr
	lc.File = cfg.Logging.File

	return logging.NewLogger(lc)
}
