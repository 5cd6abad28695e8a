package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/poses"
)

// MeshReconstructor turns a pose document and its images into a mesh file.
type MeshReconstructor interface {
	Reconstruct(ctx context.Context, poseDocPath, workDir string) (meshPath string, err error)
}

// CommandReconstructor runs an external reconstruction command. Arguments
// may reference {poses}, {workdir} and {output}; the command must leave a
// mesh at {output}.
type CommandReconstructor struct {
	Command    string
	Args       []string
	OutputName string
	Runner     poses.CommandRunner
}

// NewCommandReconstructor parses a command line such as
// "ns-export --poses {poses} --out {output}". Fields are split on spaces.
func NewCommandReconstructor(commandLine string) (*CommandReconstructor, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty reconstruction command")
	}
	return &CommandReconstructor{
		Command:    fields[0],
		Args:       fields[1:],
		OutputName: MeshFileName,
		Runner:     poses.ExecRunner{},
	}, nil
}

func (c *CommandReconstructor) Reconstruct(ctx context.Context, poseDocPath, workDir string) (string, error) {
	output := filepath.Join(workDir, c.OutputName)
	replacer := strings.NewReplacer("{poses}", poseDocPath, "{workdir}", workDir, "{output}", output)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = replacer.Replace(a)
	}

	monitoring.Logf("[MeshReconstructor] %s %v", c.Command, args)
	out, err := c.Runner.Run(ctx, c.Command, args...)
	if err != nil {
		if len(out) > 512 {
			out = out[len(out)-512:]
		}
		return "", fmt.Errorf("%s: %v: %s: %w", c.Command, err, out, roof.ErrMeasurementExtractionFailed)
	}
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("%s produced no mesh: %w", c.Command, roof.ErrMeasurementExtractionFailed)
	}
	return output, nil
}
