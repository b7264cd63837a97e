package builtin

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
)

type InfoCommand struct{}

func (i *InfoCommand) Name() string {
	return "info"
}

func (i *InfoCommand) Description() string {
	return "Show the info record of a resource"
}

func (i *InfoCommand) Usage() string {
	return "info [-n namespace] path..."
}

func (i *InfoCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) == 0 {
		return usageError(i)
	}

	namespaces := args.Strings("namespace")
	if len(namespaces) == 0 {
		namespaces = []string{data.NamespaceDetails, data.NamespaceAccess}
	}

	for n, raw := range args.Args {
		path, err := data.Normalize(raw)
		if err != nil {
			return 1, err
		}
		info, err := env.FS.GetInfo(ctx, path, namespaces...)
		if err != nil {
			return 1, err
		}

		if n > 0 {
			env.Printf("\n")
		}
		env.Printf("%s\n", path)

		record := info.Raw()
		for _, ns := range slices.Sorted(maps.Keys(record)) {
			for _, key := range slices.Sorted(maps.Keys(record[ns])) {
				env.Printf("  %s.%s: %s\n", ns, key, formatValue(record[ns][key]))
			}
		}
	}
	return 0, nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case data.FileMode:
		return fmt.Sprintf("%04o", uint32(v.Perm()))
	case nil:
		return "-"
	default:
		return fmt.Sprint(v)
	}
}

func (i *InfoCommand) GetFlags() *cmd.CommandFlagSet {
	return cmd.NewFlagSet(
		&cmd.CommandFlag{Name: "namespace", Short: "n", Type: cmd.FlagStringSlice, Description: "Namespaces to request (default details and access)"},
	)
}
