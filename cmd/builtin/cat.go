package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
)

type CatCommand struct{}

func (c *CatCommand) Name() string {
	return "cat"
}

func (c *CatCommand) Description() string {
	return "Print file contents"
}

func (c *CatCommand) Usage() string {
	return "cat path..."
}

func (c *CatCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) == 0 {
		return usageError(c)
	}

	for _, raw := range args.Args {
		path, err := data.Normalize(raw)
		if err != nil {
			return 1, err
		}
		if err := c.copy(ctx, env, path); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func (c *CatCommand) copy(ctx context.Context, env *cmd.Env, path data.Path) error {
	file, err := env.FS.OpenBinary(ctx, path, data.ModeRead)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(env.Stdout, file); err != nil {
		return fmt.Errorf("cat %s: %w", path, err)
	}
	return nil
}

func (c *CatCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
