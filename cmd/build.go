package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/ssg/internal/config"
	"github.com/conneroisu/ssg/internal/services"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"b"},
		Short:   "Build the site once",
		Long: `Run the site generator and the asset step once, without serving or
watching. Drafts are excluded unless --drafts is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}

	buildCmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Output directory")
	buildCmd.Flags().BoolP("drafts", "d", false, "Include draft content")

	return buildCmd
}

func runBuild(cmd *cobra.Command, opts *rootOptions) error {
	err := loadConfig(cmd, opts, map[string]string{
		"build.output": "output",
		"build.drafts": "drafts",
	})
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Close()

	_, err = services.NewBuildService(cfg, logger).Build(cmd.Context(), services.BuildOptions{
		Stdout: cmd.OutOrStdout(),
	})

	return err
}
