package builtin

import (
	"context"
	"errors"
	"time"

	"github.com/mwantia/treefs/cmd"
)

type MountsCommand struct{}

func (m *MountsCommand) Name() string {
	return "mounts"
}

func (m *MountsCommand) Description() string {
	return "List the mount table"
}

func (m *MountsCommand) Usage() string {
	return "mounts"
}

func (m *MountsCommand) Execute(ctx context.Context, env *cmd.Env, args *cmd.CommandArgs) (int, error) {
	if len(args.Args) > 0 {
		return usageError(m)
	}
	if env.Mounts == nil {
		return 1, errors.New("mounts: no mount table available")
	}

	env.Printf("%-24s %-10s %-3s %-4s %s\n", "PATH", "BACKEND", "RO", "BUSY", "MOUNTED")
	env.Printf("%-24s %-10s %-3s %-4s %s\n", "/", env.Mounts.Root().Name(), "-", "-", "-")
	for _, mnt := range env.Mounts.Mounts() {
		env.Printf("%-24s %-10s %-3s %-4s %s\n",
			mnt.Path, mnt.Backend.Name(), yesNo(mnt.Options.ReadOnly), yesNo(mnt.IsBusy()), mnt.MountTime.Format(time.DateTime))
	}
	return 0, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (m *MountsCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
