// Package services composes the watcher, build coordinator, live reload hub
// and content server into the commands exposed by the CLI.
package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/ssg/internal/build"
	"github.com/conneroisu/ssg/internal/config"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

// resolveWorkDir returns dir as an absolute path, defaulting to the current
// directory.
func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}

	return abs, nil
}

// newCoordinator builds a coordinator from cfg, using the given pipeline
// and asset step when set and the configured commands otherwise.
func newCoordinator(cfg *config.Config, workDir string, pipeline build.Pipeline, assets build.AssetProcessor,
	notifier build.Notifier, logger logging.Logger) (*build.Coordinator, error) {
	if err := validation.ValidateOutputDir(workDir, cfg.Build.OutputDir); err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}

	if pipeline == nil {
		p, err := build.NewCommandPipeline(cfg.Build.Command, cfg.Build.OutputFlag, cfg.Build.DraftsFlag, logger.WithComponent("build"))
		if err != nil {
			return nil, err
		}
		pipeline = p
	}

	if assets == nil && cfg.Assets.Enabled {
		a, err := build.NewCommandAssetProcessor(cfg.Assets.Command, logger.WithComponent("assets"))
		if err != nil {
			return nil, err
		}
		assets = a
	}

	opts := build.Options{
		WorkDir:          workDir,
		OutputDir:        cfg.Build.OutputDir,
		IncludeDrafts:    cfg.Build.IncludeDrafts,
		AtomicSwap:       cfg.Build.AtomicSwap,
		RebuildOnDropped: cfg.Build.RebuildOnDropped,
		Pipeline:         pipeline,
		Assets:           assets,
		Notifier:         notifier,
		Logger:           logger,
	}

	return build.NewCoordinator(opts)
}
