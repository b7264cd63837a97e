// Package builtin provides the standard treefs commands.
package builtin

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

// Commands returns a new instance of every builtin.
func Commands() []cmd.Command {
	return []cmd.Command{
		&LsCommand{},
		&TreeCommand{},
		&CatCommand{},
		&MkdirCommand{},
		&CopyCommand{},
		&MoveCommand{},
		&RmCommand{},
		&FindCommand{},
		&InfoCommand{},
		&ExportCommand{},
		&MountsCommand{},
	}
}

// InitBuiltin registers every builtin with cc.
func InitBuiltin(cc *cmd.CommandCenter) error {
	var errs []error
	for _, c := range Commands() {
		errs = append(errs, cc.Register(c))
	}
	return errors.Join(errs...)
}

// pathArg returns the normalized positional argument at index or fallback.
func pathArg(args *cmd.CommandArgs, index int, fallback string) (data.Path, error) {
	raw := fallback
	if index < len(args.Args) {
		raw = args.Args[index]
	}
	return data.Normalize(raw)
}

func usageError(c cmd.Command) (int, error) {
	return 2, errors.New("usage: " + c.Usage())
}

// reportOutcome prints failures and, when verbose, the summary. The exit
// code is 1 unless the operation fully succeeded.
func reportOutcome(env *cmd.Env, outcome *tree.Outcome, err error, verbose bool) (int, error) {
	if outcome != nil {
		for _, failure := range outcome.Failures {
			fmt.Fprintf(env.Stderr, "%s: %v\n", failure.Path, failure.Err)
		}
		if verbose {
			env.Printf("%s\n", outcome)
		}
	}
	if err != nil {
		return 1, err
	}
	if outcome != nil && !outcome.OK() {
		return 1, fmt.Errorf("%s: %d of %d resources failed", outcome.Op, len(outcome.Failures), outcome.Visited)
	}
	return 0, nil
}

// humanSize renders n with a binary unit suffix.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSize(n int64, human bool) string {
	if human {
		return humanSize(n)
	}
	return strconv.FormatInt(n, 10)
}

func formatMode(info data.Info) string {
	perm, ok := info.Permissions()
	if !ok {
		if info.IsDir() {
			return "d?????????"
		}
		return "-?????????"
	}
	if info.IsDir() {
		perm |= data.ModeDir
	}
	return perm.String()
}

func formatTime(info data.Info) string {
	modified, ok := info.Modified()
	if !ok {
		return fmt.Sprintf("%19s", "-")
	}
	return modified.Local().Format(time.DateTime)
}

func formatOwner(info data.Info) string {
	user, ok := info.User()
	if !ok {
		user = "-"
	}
	group, ok := info.Group()
	if !ok {
		group = "-"
	}
	return user + " " + group
}
