package builtin

import (
	"context"
	"slices"
	"strings"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

type LsCommand struct{}

func (ls *LsCommand) Name() string {
	return "ls"
}

func (ls *LsCommand) Description() string {
	return "List directory contents"
}

func (ls *LsCommand) Usage() string {
	return "ls [-l] [-H] [--exclude pattern] [path]"
}

func (ls *LsCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) > 1 {
		return usageError(ls)
	}
	path, err := pathArg(args, 0, "/")
	if err != nil {
		return 1, err
	}

	info, err := env.FS.GetInfo(ctx, path, data.NamespaceDetails, data.NamespaceAccess)
	if err != nil {
		return 1, err
	}

	var entries []backend.Entry
	if info.IsDir() {
		it, err := tree.FilterDir(ctx, env.FS, path, nil, args.Strings("exclude"),
			tree.WithNamespaces(data.NamespaceDetails, data.NamespaceAccess))
		if err != nil {
			return 1, err
		}
		if entries, err = tree.CollectEntries(it); err != nil {
			return 1, err
		}
		slices.SortFunc(entries, func(a, b backend.Entry) int {
			return strings.Compare(a.Name, b.Name)
		})
	} else {
		entries = []backend.Entry{{Name: path.Name(), Info: info}}
	}

	for _, entry := range entries {
		name := entry.Name
		if entry.Info.IsDir() {
			name += "/"
		}
		if !args.Bool("long") {
			env.Printf("%s\n", name)
			continue
		}

		size := "-"
		if n, ok := entry.Info.Size(); ok && !entry.Info.IsDir() {
			size = formatSize(n, args.Bool("human"))
		}
		env.Printf("%s  %-16s %10s  %s  %s\n", formatMode(entry.Info), formatOwner(entry.Info), size, formatTime(entry.Info), name)
	}
	return 0, nil
}

func (ls *LsCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "long", Short: "l", Type: cmd.FlagBool, Description: "Show mode, owner, size and modification time"},
		&cmd.CommandFlag{Name: "human", Short: "H", Type: cmd.FlagBool, Description: "Print sizes with units"},
		&cmd.CommandFlag{Name: "exclude", Short: "x", Type: cmd.FlagStringSlice, Description: "Hide entries matching the pattern"},
	)
}
