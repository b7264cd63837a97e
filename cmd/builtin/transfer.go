package builtin

import (
	"context"
	"errors"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

type transferFunc func(ctx context.Context, src backend.Backend, srcPath data.Path, dst backend.Backend, dstPath data.Path, opts ...tree.Option) (*tree.Outcome, error)

// runTransfer implements cp and mv. An existing destination directory
// receives the source under its own name unless -T is given.
func runTransfer(ctx context.Context, c cmd.Command, fn transferFunc, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) != 2 {
		return usageError(c)
	}
	src, err := data.Normalize(args.Args[0])
	if err != nil {
		return 1, err
	}
	dst, err := data.Normalize(args.Args[1])
	if err != nil {
		return 1, err
	}

	if !args.Bool("no-target-dir") && !src.IsRoot() {
		info, err := env.FS.GetInfo(ctx, dst)
		switch {
		case err == nil && info.IsDir():
			dst = dst.Child(src.Name())
		case err != nil && !errors.Is(err, data.ErrResourceNotFound):
			return 1, err
		}
	}

	opts, err := transferOptions(args)
	if err != nil {
		return 2, err
	}

	outcome, err := fn(ctx, env.FS, src, env.FS, dst, env.TreeOptions(opts...)...)
	return reportOutcome(env, outcome, err, args.Bool("verbose"))
}

func transferOptions(args *cmd.CommandArgs) ([]tree.Option, error) {
	var opts []tree.Option

	if value := args.String("overwrite"); value != "" {
		policy, err := tree.ParseOverwritePolicy(value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tree.WithOverwrite(policy))
	}
	if args.Bool("no-clobber") {
		opts = append(opts, tree.WithOverwrite(tree.OverwriteNever))
	}
	if value := args.String("on-error"); value != "" {
		handler, err := tree.ParseErrorPolicy(value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tree.WithOnError(handler))
	}
	if args.Has("workers") {
		opts = append(opts, tree.WithWorkers(args.Int("workers")))
	}
	if args.Bool("preserve") {
		opts = append(opts, tree.WithPreserveTime(true))
	}
	if patterns := args.Strings("exclude"); len(patterns) > 0 {
		opts = append(opts, tree.WithExclude(patterns...))
	}
	if patterns := args.Strings("include"); len(patterns) > 0 {
		opts = append(opts, tree.WithFilter(patterns...))
	}

	return opts, nil
}

func transferFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "overwrite", Type: cmd.FlagString, Description: "always, never or newer"},
		&cmd.CommandFlag{Name: "no-clobber", Short: "n", Type: cmd.FlagBool, Description: "Never overwrite existing files"},
		&cmd.CommandFlag{Name: "on-error", Type: cmd.FlagString, Description: "ignore, abort or raise"},
		&cmd.CommandFlag{Name: "workers", Short: "j", Type: cmd.FlagInt, Description: "Concurrent file transfers"},
		&cmd.CommandFlag{Name: "preserve", Short: "p", Type: cmd.FlagBool, Description: "Keep modification times"},
		&cmd.CommandFlag{Name: "exclude", Short: "x", Type: cmd.FlagStringSlice, Description: "Skip resources matching the pattern"},
		&cmd.CommandFlag{Name: "include", Short: "i", Type: cmd.FlagStringSlice, Description: "Only transfer files matching the pattern"},
		&cmd.CommandFlag{Name: "no-target-dir", Short: "T", Type: cmd.FlagBool, Description: "Treat the destination as the target itself"},
		&cmd.CommandFlag{Name: "verbose", Short: "v", Type: cmd.FlagBool, Description: "Print the outcome summary"},
	)
}

type CopyCommand struct{}

func (c *CopyCommand) Name() string {
	return "cp"
}

func (c *CopyCommand) Description() string {
	return "Copy files and directory trees"
}

func (c *CopyCommand) Usage() string {
	return "cp [-n] [-p] [-j workers] [-x pattern] [-v] src dst"
}

func (c *CopyCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	return runTransfer(ctx, c, tree.Copy, env, args)
}

func (c *CopyCommand) GetFlags() *cmd.CommandFlagSet {
	return transferFlags()
}

type MoveCommand struct{}

func (m *MoveCommand) Name() string {
	return "mv"
}

func (m *MoveCommand) Description() string {
	return "Move files and directory trees"
}

func (m *MoveCommand) Usage() string {
	return "mv [-n] [-p] [-j workers] [-x pattern] [-v] src dst"
}

func (m *MoveCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	return runTransfer(ctx, m, tree.Move, env, args)
}

func (m *MoveCommand) GetFlags() *cmd.CommandFlagSet {
	return transferFlags()
}
