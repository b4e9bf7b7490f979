package build

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

// AssetProcessor post-processes the output after a successful build. It is
// best-effort: failures are logged and never fail the build.
type AssetProcessor interface {
	Run(ctx context.Context, workDir string) error
}

// CommandAssetProcessor runs an asset command such as "npm run css:build".
type CommandAssetProcessor struct {
	command string
	args    []string
	logger  logging.Logger
}

// NewCommandAssetProcessor creates an asset processor from a
// whitespace-separated command line.
func NewCommandAssetProcessor(commandLine string, logger logging.Logger) (*CommandAssetProcessor, error) {
	argv := strings.Fields(commandLine)
	if err := validation.ValidateCommand(argv); err != nil {
		return nil, fmt.Errorf("assets command: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	return &CommandAssetProcessor{command: argv[0], args: argv[1:], logger: logger}, nil
}

// Run executes the asset command in workDir. A command that is not
// installed is skipped.
func (a *CommandAssetProcessor) Run(ctx context.Context, workDir string) error {
	if _, err := exec.LookPath(a.command); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			a.logger.Info(ctx, "Asset command not installed, skipping", "command", a.command)
			return nil
		}
		return fmt.Errorf("locating %s: %w", a.command, err)
	}

	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w\nOutput: %s", a.command, err, tail(output, 4096))
	}

	return nil
}
