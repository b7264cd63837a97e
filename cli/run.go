package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/mwantia/treefs/cmd"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOpts) *cobra.Command {
	var keepGoing bool

	command := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a command script",
		Long: `Run executes one command per line against a single mount table, so state
built by earlier lines (e.g. memory mounts) is visible to later ones.
Blank lines and lines starting with '#' are skipped. Without a file, or
with '-', the script is read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			var script io.Reader = cc.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				script = file
			}

			return opts.withEnv(cc.Context(), cc, func(env *cmd.Env) error {
				return runScript(cc, opts.center, env, script, keepGoing)
			})
		},
	}

	command.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "continue after a failed line")
	return command
}

func runScript(cc *cobra.Command, center *cmd.CommandCenter, env *cmd.Env, script io.Reader, keepGoing bool) error {
	var last error

	scanner := bufio.NewScanner(script)
	for number := 1; scanner.Scan(); number++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		failed := runLine(cc, center, env, line, number)
		if failed == nil {
			continue
		}
		if !keepGoing {
			return failed
		}
		fmt.Fprintf(env.Stderr, "treefs: %v\n", failed)
		last = failed
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return last
}

func runLine(cc *cobra.Command, center *cmd.CommandCenter, env *cmd.Env, line string, number int) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return &exitError{code: 2, err: fmt.Errorf("line %d: %w", number, err)}
	}

	env.Logger.Debug("run: line %d: %v", number, tokens)
	code, err := center.Execute(cc.Context(), env, tokens...)
	if code == 0 && err == nil {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("exit status %d", code)
	}
	return &exitError{code: max(code, 1), err: fmt.Errorf("line %d: %w", number, err)}
}
