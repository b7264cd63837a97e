package builtin

import (
	"context"
	"errors"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

type RmCommand struct{}

func (rm *RmCommand) Name() string {
	return "rm"
}

func (rm *RmCommand) Description() string {
	return "Remove files or directories"
}

func (rm *RmCommand) Usage() string {
	return "rm [-r] [-f] [-d] [-v] path..."
}

func (rm *RmCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) == 0 {
		return usageError(rm)
	}

	code := 0
	var errs []error
	for _, raw := range args.Args {
		path, err := data.Normalize(raw)
		if err != nil {
			return 1, err
		}

		c, err := rm.remove(ctx, env, path, args)
		if args.Bool("force") && errors.Is(err, data.ErrResourceNotFound) {
			continue
		}
		code = max(code, c)
		errs = append(errs, err)
	}
	return code, errors.Join(errs...)
}

func (rm *RmCommand) remove(ctx context.Context, env *cmd.Env, path data.Path, args *cmd.CommandArgs) (int, error) {
	info, err := env.FS.GetInfo(ctx, path)
	if err != nil {
		return 1, err
	}
	if !info.IsDir() {
		if err := env.FS.Remove(ctx, path); err != nil {
			return 1, err
		}
		return 0, nil
	}

	switch {
	case args.Bool("recursive"):
		outcome, err := tree.RemoveTree(ctx, env.FS, path, env.TreeOptions()...)
		return reportOutcome(env, outcome, err, args.Bool("verbose"))
	case args.Bool("dir"):
		if err := env.FS.RemoveDir(ctx, path); err != nil {
			return 1, err
		}
		return 0, nil
	default:
		return 1, data.NewError(data.ErrFileExpected, "rm", path.String(), nil)
	}
}

func (rm *RmCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "recursive", Short: "r", Type: cmd.FlagBool, Description: "Remove directories and their contents"},
		&cmd.CommandFlag{Name: "dir", Short: "d", Type: cmd.FlagBool, Description: "Remove empty directories"},
		&cmd.CommandFlag{Name: "force", Short: "f", Type: cmd.FlagBool, Description: "Ignore missing paths"},
		&cmd.CommandFlag{Name: "verbose", Short: "v", Type: cmd.FlagBool, Description: "Print the outcome summary"},
	)
}
