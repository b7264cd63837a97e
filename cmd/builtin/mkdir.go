package builtin

import (
	"context"
	"errors"
	"strconv"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
)

type MkdirCommand struct{}

func (m *MkdirCommand) Name() string {
	return "mkdir"
}

func (m *MkdirCommand) Description() string {
	return "Create directories"
}

func (m *MkdirCommand) Usage() string {
	return "mkdir [-p] [-m mode] path..."
}

func (m *MkdirCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) == 0 {
		return usageError(m)
	}

	perm := data.DefaultDirMode
	if mode := args.String("mode"); mode != "" {
		v, err := strconv.ParseUint(mode, 8, 32)
		if err != nil {
			return 2, errors.New("mkdir: invalid mode '" + mode + "'")
		}
		perm = data.FileMode(v).Perm()
	}

	for _, raw := range args.Args {
		path, err := data.Normalize(raw)
		if err != nil {
			return 1, err
		}

		if !args.Bool("parents") {
			if err := env.FS.MakeDir(ctx, path, perm, false); err != nil {
				return 1, err
			}
			continue
		}

		current := data.Root()
		for _, segment := range path.Segments() {
			current = current.Child(segment)
			if info, err := env.FS.GetInfo(ctx, current); err == nil && info.IsDir() {
				continue
			}
			if err := env.FS.MakeDir(ctx, current, perm, true); err != nil {
				return 1, err
			}
		}
	}
	return 0, nil
}

func (m *MkdirCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "parents", Short: "p", Type: cmd.FlagBool, Description: "Create missing parents, no error if existing"},
		&cmd.CommandFlag{Name: "mode", Short: "m", Type: cmd.FlagString, Description: "Octal permission bits"},
	)
}
