package cmd

import (
	"fmt"
	"strconv"
)

// Flag types understood by the parser.
const (
	FlagString      = "string"
	FlagBool        = "bool"
	FlagInt         = "int"
	FlagStringSlice = "stringSlice"
)

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments (command-specific)
	Args []string

	// Parsed flags, keyed by flag name
	Flags map[string]any

	// Raw unparsed arguments (for custom parsing)
	Raw []string
}

// String returns the value of a string flag or "".
func (a *CommandArgs) String(name string) string {
	value, _ := a.Flags[name].(string)
	return value
}

func (a *CommandArgs) Bool(name string) bool {
	value, _ := a.Flags[name].(bool)
	return value
}

func (a *CommandArgs) Int(name string) int {
	value, _ := a.Flags[name].(int)
	return value
}

// Strings returns every value of a repeatable flag.
func (a *CommandArgs) Strings(name string) []string {
	values, _ := a.Flags[name].([]string)
	return values
}

// Has reports whether the flag was given or has a default.
func (a *CommandArgs) Has(name string) bool {
	_, ok := a.Flags[name]
	return ok
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// NewFlagSet indexes flags by name.
func NewFlagSet(flags ...*CommandFlag) *CommandFlagSet {
	set := &CommandFlagSet{Flags: make(map[string]*CommandFlag, len(flags))}
	for _, flag := range flags {
		set.Flags[flag.Name] = flag
	}
	return set
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string `json:"name"`              // e.g., "type"
	Short       string `json:"short"`             // Single-char shorthand (e.g., "t")
	Type        string `json:"type"`              // "string", "bool", "int", "stringSlice"
	Default     any    `json:"default,omitempty"` // Default value
	Required    bool   `json:"required"`          // Must be provided
	Description string `json:"description"`       // Help text
}

func (f *CommandFlag) coerce(value string) (any, error) {
	switch f.Type {
	case FlagInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("flag --%s expects a number, got '%s'", f.Name, value)
		}
		return v, nil
	case FlagBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("flag --%s expects a boolean, got '%s'", f.Name, value)
		}
		return v, nil
	default:
		return value, nil
	}
}
