package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/ssg/internal/config"
	"github.com/conneroisu/ssg/internal/services"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Build the site, serve it and reload browsers on change",
		Long: `Build the site once, serve the output directory, and rebuild whenever a
watched source file changes. Connected browsers reload after every
successful rebuild. Drafts are included unless --drafts=false is given.

Examples:
  ssg serve                     # Serve on 0.0.0.0:5000
  ssg serve -p 8080 --host 127.0.0.1
  ssg serve --no-watch          # Serve the initial build only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to")
	serveCmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Output directory")
	serveCmd.Flags().BoolP("drafts", "d", true, "Include draft content")
	serveCmd.Flags().Bool("no-watch", false, "Don't rebuild on file changes")

	return serveCmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	err := loadConfig(cmd, opts, map[string]string{
		"server.port":  "port",
		"server.host":  "host",
		"build.output": "output",
		"build.drafts": "drafts",
	})
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		viper.Set("watch.enabled", false)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Close()

	_, err = services.NewServeService(cfg, logger).Serve(cmd.Context(), services.ServeOptions{
		Stdout: cmd.OutOrStdout(),
	})

	return err
}
