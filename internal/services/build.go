package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/conneroisu/ssg/internal/build"
	"github.com/conneroisu/ssg/internal/config"
	"github.com/conneroisu/ssg/internal/logging"
)

// BuildService runs a single build without serving.
type BuildService struct {
	config *config.Config
	logger logging.Logger
}

// NewBuildService creates a new build service
func NewBuildService(cfg *config.Config, logger logging.Logger) *BuildService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BuildService{
		config: cfg,
		logger: logger.WithComponent("build-service"),
	}
}

// BuildOptions contains options for the build command
type BuildOptions struct {
	WorkDir string
	Stdout  io.Writer

	Pipeline build.Pipeline
	Assets   build.AssetProcessor
}

// BuildResult contains the results of a build
type BuildResult struct {
	OutputDir string
	Duration  time.Duration
	Success   bool
}

// Build generates the site and runs the asset step once.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	workDir, err := resolveWorkDir(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	coordinator, err := newCoordinator(s.config, workDir, opts.Pipeline, opts.Assets, nil, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = coordinator.Close(context.Background())
	}()

	fmt.Fprintln(out, "Building site...")
	start := time.Now()
	buildErr := coordinator.ForceBuild(ctx)

	result := &BuildResult{
		OutputDir: coordinator.OutputDir(),
		Duration:  time.Since(start),
		Success:   buildErr == nil,
	}
	if buildErr != nil {
		return result, buildErr
	}

	fmt.Fprintf(out, "Built %s in %s\n", result.OutputDir, result.Duration.Round(time.Millisecond))

	return result, nil
}
