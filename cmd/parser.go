package cmd

import (
	"fmt"
	"strings"
)

// Parser parses user-defined arguments into flags
type Parser struct {
	flagSet *CommandFlagSet
}

func NewParser(flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = NewFlagSet()
	}
	return &Parser{
		flagSet: flagSet,
	}
}

// Parse accepts "--name value", "--name=value", bundled short bools
// ("-rf") and a short flag with an attached value ("-L2"). Everything
// after "--" is positional.
func (cp *Parser) Parse(raw []string) (*CommandArgs, error) {
	args := &CommandArgs{
		Flags: make(map[string]any),
		Raw:   raw,
	}

	for name, flag := range cp.flagSet.Flags {
		if flag.Default != nil {
			args.Flags[name] = flag.Default
		}
	}

	shortToName := make(map[string]string)
	for name, flag := range cp.flagSet.Flags {
		if flag.Short != "" {
			shortToName[flag.Short] = name
		}
	}
	given := make(map[string]bool)

	set := func(flag *CommandFlag, value string) error {
		v, err := flag.coerce(value)
		if err != nil {
			return err
		}
		if flag.Type == FlagStringSlice {
			var values []string
			if given[flag.Name] {
				values = args.Strings(flag.Name)
			}
			args.Flags[flag.Name] = append(values, value)
		} else {
			args.Flags[flag.Name] = v
		}
		given[flag.Name] = true
		return nil
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			args.Args = append(args.Args, raw[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "--") {
			key, value, hasValue := parseLongFlag(arg)
			flag, exists := cp.flagSet.Flags[key]
			if !exists {
				return nil, fmt.Errorf("unknown flag: --%s", key)
			}

			switch {
			case hasValue:
			case flag.Type == FlagBool:
				value = "true"
			case i+1 < len(raw):
				value = raw[i+1]
				i++
			default:
				return nil, fmt.Errorf("flag --%s requires a value", key)
			}
			if err := set(flag, value); err != nil {
				return nil, err
			}
			continue
		}

		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			shortFlags := arg[1:]

			for j, shortChar := range shortFlags {
				shortStr := string(shortChar)
				name, exists := shortToName[shortStr]
				if !exists {
					return nil, fmt.Errorf("unknown flag: -%s", shortStr)
				}

				flag := cp.flagSet.Flags[name]
				if flag.Type == FlagBool {
					if err := set(flag, "true"); err != nil {
						return nil, err
					}
					continue
				}

				var value string
				if j+1 < len(shortFlags) {
					value = shortFlags[j+1:]
				} else if i+1 < len(raw) {
					value = raw[i+1]
					i++
				} else {
					return nil, fmt.Errorf("flag -%s requires a value", shortStr)
				}
				if err := set(flag, value); err != nil {
					return nil, err
				}
				break
			}
			continue
		}

		args.Args = append(args.Args, arg)
	}

	for name, flag := range cp.flagSet.Flags {
		if flag.Required && !given[name] {
			if flag.Short != "" {
				return nil, fmt.Errorf("required flag: -%s / --%s", flag.Short, flag.Name)
			}
			return nil, fmt.Errorf("required flag: --%s", flag.Name)
		}
	}

	return args, nil
}

func parseLongFlag(arg string) (key, value string, hasValue bool) {
	arg = strings.TrimPrefix(arg, "--")
	if idx := strings.Index(arg, "="); idx >= 0 {
		return arg[:idx], arg[idx+1:], true
	}
	return arg, "", false
}
