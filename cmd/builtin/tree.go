package builtin

import (
	"context"
	"strings"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

type TreeCommand struct{}

func (t *TreeCommand) Name() string {
	return "tree"
}

func (t *TreeCommand) Description() string {
	return "Print a directory tree"
}

func (t *TreeCommand) Usage() string {
	return "tree [-L depth] [-d] [--exclude pattern] [path]"
}

func (t *TreeCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) > 1 {
		return usageError(t)
	}
	root, err := pathArg(args, 0, "/")
	if err != nil {
		return 1, err
	}

	opts := []tree.Option{
		tree.WithSearchOrder(tree.DepthFirst),
		tree.WithExclude(args.Strings("exclude")...),
		tree.WithOnError(func(_ data.Path, err error) tree.ErrorAction {
			env.Logger.Warn("tree: %v", err)
			return tree.ActionContinue
		}),
	}
	if args.Has("level") {
		opts = append(opts, tree.WithMaxDepth(args.Int("level")))
	}

	walker, err := tree.Walk(ctx, env.FS, root, opts...)
	if err != nil {
		return 1, err
	}
	defer walker.Close()

	env.Printf("%s\n", root)

	dirs, files := 0, 0
	for walker.Next() {
		step := walker.Step()
		name := step.Path.Name()
		if step.Info.IsDir() {
			dirs++
			name += "/"
		} else {
			files++
			if args.Bool("dirs-only") {
				continue
			}
		}
		env.Printf("%s%s\n", strings.Repeat("  ", step.Depth), name)
	}
	if err := walker.Err(); err != nil {
		return 1, err
	}

	env.Printf("\n%d directories, %d files\n", dirs, files)
	return 0, nil
}

func (t *TreeCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "level", Short: "L", Type: cmd.FlagInt, Description: "Descend at most this many levels"},
		&cmd.CommandFlag{Name: "dirs-only", Short: "d", Type: cmd.FlagBool, Description: "List directories only"},
		&cmd.CommandFlag{Name: "exclude", Short: "x", Type: cmd.FlagStringSlice, Description: "Skip entries matching the pattern"},
	)
}
