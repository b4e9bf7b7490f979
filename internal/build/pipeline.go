// Package build coordinates rebuilds of the site: it runs the external
// generator and asset step, guarantees that at most one build is in flight,
// and notifies connected browsers when fresh output is ready.
package build

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

// Pipeline regenerates the site into outputPath. A nil error means the
// output tree is complete.
type Pipeline interface {
	Build(ctx context.Context, workDir, outputPath string, includeDrafts bool) error
}

// CommandPipeline runs the site generator as a subprocess.
type CommandPipeline struct {
	command    string
	args       []string
	outputFlag string
	draftsFlag string
	logger     logging.Logger
}

// NewCommandPipeline creates a pipeline from a whitespace-separated command
// line such as "dotnet-ssg build".
func NewCommandPipeline(commandLine, outputFlag, draftsFlag string, logger logging.Logger) (*CommandPipeline, error) {
	argv := strings.Fields(commandLine)
	if err := validation.ValidateCommand(argv); err != nil {
		return nil, fmt.Errorf("build command: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	return &CommandPipeline{
		command:    argv[0],
		args:       argv[1:],
		outputFlag: outputFlag,
		draftsFlag: draftsFlag,
		logger:     logger,
	}, nil
}

// Args returns the full argument list for a build into outputPath.
func (p *CommandPipeline) Args(outputPath string, includeDrafts bool) []string {
	args := append([]string(nil), p.args...)
	args = append(args, p.outputFlag, outputPath)
	if includeDrafts && p.draftsFlag != "" {
		args = append(args, p.draftsFlag)
	}

	return args
}

// Build runs the generator in workDir and waits for it to exit.
func (p *CommandPipeline) Build(ctx context.Context, workDir, outputPath string, includeDrafts bool) error {
	args := p.Args(outputPath, includeDrafts)
	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", p.command, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w\nOutput: %s", p.command, err, tail(output, 4096))
	}

	p.logger.Debug(ctx, "Generator finished", "command", p.command, "output", string(tail(output, 1024)))

	return nil
}

// tail returns at most the last n bytes of b.
func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
