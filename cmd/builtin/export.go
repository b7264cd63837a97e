package builtin

import (
	"context"

	"github.com/mwantia/treefs/backend/archive"
	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

type ExportCommand struct{}

func (e *ExportCommand) Name() string {
	return "export"
}

func (e *ExportCommand) Description() string {
	return "Write a directory tree to a tar archive"
}

func (e *ExportCommand) Usage() string {
	return "export [-z none|gzip|zstd] [-x pattern] src dst"
}

func (e *ExportCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (n int, err error) {
	if len(args.Args) != 2 {
		return usageError(e)
	}
	src, err := data.Normalize(args.Args[0])
	if err != nil {
		return 1, err
	}
	dst, err := data.Normalize(args.Args[1])
	if err != nil {
		return 1, err
	}
	if dst.HasPrefix(src) {
		return 1, data.NewError(data.ErrIllegalDestination, "export", dst.String(), nil)
	}

	compression := archive.CompressionFromName(dst.Name())
	if value := args.String("compression"); value != "" {
		if compression, err = archive.ParseCompression(value); err != nil {
			return 2, err
		}
	}

	file, err := env.FS.OpenBinary(ctx, dst, data.ModeWrite)
	if err != nil {
		return 1, err
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			n, err = 1, cerr
		}
	}()

	count, err := archive.Export(ctx, env.FS, src, file, compression, tree.WithExclude(args.Strings("exclude")...))
	if err != nil {
		return 1, err
	}

	env.Logger.Info("exported %d members of %s to %s (%s)", count, src, dst, compression)
	if args.Bool("verbose") {
		env.Printf("%d members written to %s\n", count, dst)
	}
	return 0, nil
}

func (e *ExportCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "compression", Short: "z", Type: cmd.FlagString, Description: "none, gzip or zstd (default from the file name)"},
		&cmd.CommandFlag{Name: "exclude", Short: "x", Type: cmd.FlagStringSlice, Description: "Skip resources matching the pattern"},
		&cmd.CommandFlag{Name: "verbose", Short: "v", Type: cmd.FlagBool, Description: "Print the member count"},
	)
}
