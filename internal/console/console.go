package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flotilla-io/flotilla/internal/cli"
)

// Console is the interactive prompt loop.
type Console struct {
	env      *Context
	registry *Registry
	reader   *bufio.Reader
	render   func(string) string
}

// New builds a console over the given context, registering the built-in
// commands. The context's readLine hook is installed here so confirmation
// prompts share the loop's buffered reader.
func New(env *Context) (*Console, error) {
	in := env.In
	if in == nil {
		in = os.Stdin
	}

	c := &Console{
		env:      env,
		registry: NewRegistry(),
		reader:   bufio.NewReader(in),
		render:   cli.NewHelpRenderer(),
	}
	env.readLine = c.readLine

	for _, cmd := range builtins() {
		if cmd.Name == "help" {
			cmd.Invoke = c.cmdHelp
		}
		if err := c.registry.Register(cmd); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a command beyond the built-ins.
func (c *Console) Register(cmd *Command) error {
	return c.registry.Register(cmd)
}

// Run reads and dispatches commands until exit, EOF, or context cancellation.
// Sessions are shut down on the way out.
func (c *Console) Run(ctx context.Context) error {
	defer c.env.Sessions.Shutdown()

	// Redraw the prompt after the demux flushes asynchronous node output.
	c.env.Sessions.SetRefreshCallback(func() {
		c.env.Out.Printf("%s", c.prompt())
	})

	c.env.Out.Printf("flotilla console. type help for commands.\n")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.env.Out.Printf("%s", c.prompt())

		line, err := c.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := c.dispatch(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			c.env.Out.Printf("error: %v\n", err)
		}
	}
}

func (c *Console) prompt() string {
	return c.env.Out.Prompt(c.env.Resolver.Current())
}

func (c *Console) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Console) dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := c.registry.Lookup(fields[0])
	if !ok {
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return cmd.Invoke(ctx, c.env, fields[1:])
}

func (c *Console) cmdHelp(ctx context.Context, env *Context, args []string) error {
	if len(args) == 0 {
		for _, cmd := range c.registry.Commands() {
			env.Out.Printf("  %-32s %s\n", cmd.Usage, firstLine(cmd.Help))
		}
		return nil
	}

	cmd, ok := c.registry.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	doc := fmt.Sprintf("## %s\n\n`%s`\n\n%s\n", cmd.Name, cmd.Usage, cmd.Help)
	env.Out.Printf("%s", c.render(doc))
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
