// Package console implements the interactive operator console: a static
// command registry dispatched from a prompt loop, with asynchronous node
// output interleaved by the session demultiplexer.
package console

import (
	"context"
	"fmt"
	"sort"
)

// Command is one console command. Commands are registered once at startup;
// there is no runtime plugin discovery.
type Command struct {
	// Name is the word the operator types.
	Name string

	// Usage is the one-line argument synopsis, e.g. "put <target> <localglob> [dest]".
	Usage string

	// Help is the long-form description, markdown-rendered by `help <name>`.
	Help string

	// Invoke runs the command. args excludes the command name itself.
	Invoke func(ctx context.Context, env *Context, args []string) error
}

// Registry maps command names to handlers.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command. Registering a duplicate name is a programming
// error and fails loudly.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command has no name")
	}
	if _, ok := r.commands[cmd.Name]; ok {
		return fmt.Errorf("command %q registered twice", cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns every registered command in name order.
func (r *Registry) Commands() []*Command {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Command, 0, len(names))
	for _, name := range names {
		out = append(out, r.commands[name])
	}
	return out
}
