package builtin

import (
	"context"
	"errors"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/glob"
	"github.com/mwantia/treefs/tree"
)

type FindCommand struct{}

func (f *FindCommand) Name() string {
	return "find"
}

func (f *FindCommand) Description() string {
	return "Search for files and directories"
}

func (f *FindCommand) Usage() string {
	return "find [path] [--name pattern] [--type f|d] [-L depth] [--order breadth|depth|post] | find --glob pattern"
}

func (f *FindCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) > 1 {
		return usageError(f)
	}

	kind := args.String("type")
	if kind != "" && kind != "f" && kind != "d" {
		return 2, errors.New("find: --type must be f or d")
	}

	var steps []tree.Step
	if pattern := args.String("glob"); pattern != "" {
		matches, err := tree.Glob(ctx, env.FS, pattern)
		if err != nil {
			return 1, err
		}
		steps = matches
	} else {
		var err error
		if steps, err = f.walk(ctx, env, args); err != nil {
			return 1, err
		}
	}

	for _, step := range steps {
		switch {
		case kind == "f" && step.Info.IsDir():
		case kind == "d" && !step.Info.IsDir():
		default:
			env.Printf("%s\n", step.Path)
		}
	}
	return 0, nil
}

func (f *FindCommand) walk(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) ([]tree.Step, error) {
	root, err := pathArg(args, 0, "/")
	if err != nil {
		return nil, err
	}
	order, err := tree.ParseSearchOrder(args.String("order"))
	if err != nil {
		return nil, err
	}

	opts := []tree.Option{
		tree.WithSearchOrder(order),
		tree.WithExclude(args.Strings("exclude")...),
	}
	if args.Has("maxdepth") {
		opts = append(opts, tree.WithMaxDepth(args.Int("maxdepth")))
	}

	names, err := glob.CompileSet(args.Strings("name"))
	if err != nil {
		return nil, err
	}

	walker, err := tree.Walk(ctx, env.FS, root, opts...)
	if err != nil {
		return nil, err
	}
	defer walker.Close()

	var steps []tree.Step
	for walker.Next() {
		step := walker.Step()
		if len(names) > 0 && !names.MatchName(step.Path.Name()) {
			continue
		}
		steps = append(steps, step)
	}
	return steps, walker.Err()
}

func (f *FindCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "name", Short: "n", Type: cmd.FlagStringSlice, Description: "Match the resource name against the pattern"},
		&cmd.CommandFlag{Name: "type", Short: "t", Type: cmd.FlagString, Description: "f for files, d for directories"},
		&cmd.CommandFlag{Name: "maxdepth", Short: "L", Type: cmd.FlagInt, Description: "Descend at most this many levels"},
		&cmd.CommandFlag{Name: "order", Type: cmd.FlagString, Default: "breadth_first", Description: "breadth_first, depth_first or post_order"},
		&cmd.CommandFlag{Name: "exclude", Short: "x", Type: cmd.FlagStringSlice, Description: "Skip resources matching the pattern"},
		&cmd.CommandFlag{Name: "glob", Short: "g", Type: cmd.FlagString, Description: "Match whole paths against the pattern"},
	)
}
