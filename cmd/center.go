package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mwantia/treefs/log"
)

// CommandCenter handles command registration, parsing, and execution
type CommandCenter struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

func NewCommandCenter() *CommandCenter {
	return &CommandCenter{
		cmds: make(map[string]Command),
	}
}

// Register registers a custom command
func (cc *CommandCenter) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}

	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if _, exists := cc.cmds[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}

	cc.cmds[name] = cmd
	return nil
}

// Unregister removes a registered command
func (cc *CommandCenter) Unregister(name string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if _, exists := cc.cmds[name]; !exists {
		return fmt.Errorf("command not found: %s", name)
	}

	delete(cc.cmds, name)
	return nil
}

// Get returns a command by name
func (cc *CommandCenter) Get(name string) (Command, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	cmd, exists := cc.cmds[name]
	if !exists {
		return nil, fmt.Errorf("command not found: %s", name)
	}

	return cmd, nil
}

// List returns all registered commands sorted by name
func (cc *CommandCenter) List() []Command {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	commands := make([]Command, 0, len(cc.cmds))
	for _, cmd := range cc.cmds {
		commands = append(commands, cmd)
	}

	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return commands
}

// Execute parses and executes a command
func (cc *CommandCenter) Execute(ctx context.Context, env *Env, args ...string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	cmd, err := cc.Get(args[0])
	if err != nil {
		return 1, err
	}

	parsed, err := NewParser(cmd.GetFlags()).Parse(args[1:])
	if err != nil {
		return 2, fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	if env.Logger == nil {
		env.Logger = log.Discard()
	}
	env.Logger.Debug("executing %s %v", cmd.Name(), parsed.Args)
	return cmd.Execute(ctx, env, parsed)
}
