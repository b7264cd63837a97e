package main

import (
	"fmt"

	"github.com/mwantia/treefs/cmd"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newBuiltinCmd exposes c as a subcommand. Its flag set is translated
// into cobra flags, so global flags may appear anywhere on the line.
func newBuiltinCmd(c cmd.Command, opts *rootOpts) *cobra.Command {
	command := &cobra.Command{
		Use:   c.Usage(),
		Short: c.Description(),
	}

	var flags []*cmd.CommandFlag
	if set := c.GetFlags(); set != nil {
		for _, flag := range set.Flags {
			flags = append(flags, flag)
			registerFlag(command.Flags(), flag)
		}
	}

	command.RunE = func(cc *cobra.Command, args []string) error {
		parsed, err := collectArgs(cc.Flags(), flags, args)
		if err != nil {
			return &exitError{code: 2, err: err}
		}

		return opts.withEnv(cc.Context(), cc, func(env *cmd.Env) error {
			code, err := c.Execute(cc.Context(), env, parsed)
			if code != 0 || err != nil {
				return &exitError{code: max(code, 1), err: err}
			}
			return nil
		})
	}
	return command
}

func registerFlag(fs *pflag.FlagSet, flag *cmd.CommandFlag) {
	switch flag.Type {
	case cmd.FlagBool:
		value, _ := flag.Default.(bool)
		fs.BoolP(flag.Name, flag.Short, value, flag.Description)
	case cmd.FlagInt:
		value, _ := flag.Default.(int)
		fs.IntP(flag.Name, flag.Short, value, flag.Description)
	case cmd.FlagStringSlice:
		value, _ := flag.Default.([]string)
		fs.StringArrayP(flag.Name, flag.Short, value, flag.Description)
	default:
		value, _ := flag.Default.(string)
		fs.StringP(flag.Name, flag.Short, value, flag.Description)
	}
}

// collectArgs reads the flag values back into the form commands expect.
// Flags without a default are only present when given.
func collectArgs(fs *pflag.FlagSet, flags []*cmd.CommandFlag, args []string) (*cmd.CommandArgs, error) {
	parsed := &cmd.CommandArgs{
		Args:  args,
		Flags: make(map[string]any),
		Raw:   args,
	}

	for _, flag := range flags {
		if !fs.Changed(flag.Name) && flag.Default == nil {
			if flag.Required {
				return nil, fmt.Errorf("required flag: --%s", flag.Name)
			}
			continue
		}

		var (
			value any
			err   error
		)
		switch flag.Type {
		case cmd.FlagBool:
			value, err = fs.GetBool(flag.Name)
		case cmd.FlagInt:
			value, err = fs.GetInt(flag.Name)
		case cmd.FlagStringSlice:
			value, err = fs.GetStringArray(flag.Name)
		default:
			value, err = fs.GetString(flag.Name)
		}
		if err != nil {
			return nil, err
		}
		parsed.Flags[flag.Name] = value
	}
	return parsed, nil
}
