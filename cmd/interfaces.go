package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/log"
	"github.com/mwantia/treefs/mount"
	"github.com/mwantia/treefs/tree"
)

// Env is what a command operates on.
type Env struct {
	// FS serves every path a command is given.
	FS backend.Backend
	// Mounts is set when FS is a mount table.
	Mounts *mount.MountFS

	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger

	// Options are applied to every tree operation before command flags.
	Options []tree.Option
}

// NewEnv creates an environment for a mount table.
func NewEnv(mfs *mount.MountFS, stdout, stderr io.Writer, logger *log.Logger) *Env {
	if logger == nil {
		logger = log.Discard()
	}
	return &Env{
		FS:     mfs,
		Mounts: mfs,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	}
}

// Printf writes to the command output.
func (e *Env) Printf(format string, args ...any) {
	fmt.Fprintf(e.Stdout, format, args...)
}

// Path normalizes a path argument.
func (e *Env) Path(raw string) (data.Path, error) {
	return data.Normalize(raw)
}

// TreeOptions returns the environment defaults followed by extra.
func (e *Env) TreeOptions(extra ...tree.Option) []tree.Option {
	opts := make([]tree.Option, 0, len(e.Options)+len(extra)+1)
	opts = append(opts, tree.WithLogger(e.Logger))
	opts = append(opts, e.Options...)
	return append(opts, extra...)
}

// Command represents an executable command within the virtual filesystem.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls -l [path]")
	Usage() string

	// Execute runs the command with parsed arguments.
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, env *Env, args *CommandArgs) (int, error)

	// GetFlags returns the flag set for this command (may be nil)
	GetFlags() *CommandFlagSet
}
