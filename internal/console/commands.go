package console

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// errExit signals a clean prompt-loop exit.
var errExit = errors.New("exit")

func builtins() []*Command {
	return []*Command{
		{
			Name:  "show",
			Usage: "show [-v] [target]",
			Help: "Show the resolved node inventory, grouped by cluster.\n\n" +
				"With `-v`, each node row is followed by its extended fields\n" +
				"(image, vpc, launch time, tags). An optional target expression\n" +
				"narrows the listing.",
			Invoke: cmdShow,
		},
		{
			Name:  "clusters",
			Usage: "clusters",
			Help: "List the configured cluster templates with their membership\n" +
				"filters and regions.",
			Invoke: cmdClusters,
		},
		{
			Name:  "use",
			Usage: "use <cluster>",
			Help: "Switch the console to one cluster template. Only that template\n" +
				"reconciles until `unuse`, and the inventory cache is dropped so\n" +
				"the next operation sees fresh state.",
			Invoke: cmdUse,
		},
		{
			Name:   "unuse",
			Usage:  "unuse",
			Help:   "Unload the current cluster template and reconcile everything again.",
			Invoke: cmdUnuse,
		},
		{
			Name:  "at",
			Usage: "at <target> <command...>",
			Help: "Inject a shell command line into every running node matching the\n" +
				"target expression. The call returns immediately; output arrives\n" +
				"asynchronously, each line prefixed with its node's name.\n\n" +
				"Target grammar: `*` for all nodes, a bare name glob, or\n" +
				"`key=valueglob` (`tags=keyglob:valueglob` for tag matching).",
			Invoke: cmdAt,
		},
		{
			Name:  "shell",
			Usage: "shell <target>",
			Help: "Open a raw interactive shell on exactly one node. Keystrokes are\n" +
				"forwarded byte for byte. Press ctrl-c three times in a row to\n" +
				"return to the console.",
			Invoke: cmdShell,
		},
		{
			Name:  "put",
			Usage: "put <target> <localglob> [dest]",
			Help: "Upload every local file matching the glob to every running node\n" +
				"matching the target. Without a destination the remote file keeps\n" +
				"the local basename. One node's failure does not stop the others.",
			Invoke: cmdPut,
		},
		{
			Name:  "get",
			Usage: "get <target> <remotepath> [localdir]",
			Help: "Download a remote file from every running node matching the\n" +
				"target into the local directory (default: current directory).\n" +
				"Each copy is saved as `<name>.<nodename>` so fan-out downloads\n" +
				"never collide.",
			Invoke: cmdGet,
		},
		{
			Name:   "start",
			Usage:  "start <target>",
			Help:   "Start the backing instances of every matching node.",
			Invoke: cmdStart,
		},
		{
			Name:   "stop",
			Usage:  "stop <target>",
			Help:   "Stop the backing instances of every matching node.",
			Invoke: cmdStop,
		},
		{
			Name:  "terminate",
			Usage: "terminate <target>",
			Help: "Terminate the backing instances of every matching node, after\n" +
				"confirmation. The node's name tag is renamed to\n" +
				"`<name>_terminated` so the instance stays identifiable while it\n" +
				"shuts down.",
			Invoke: cmdTerminate,
		},
		{
			Name:   "refresh",
			Usage:  "refresh",
			Help:   "Drop the inventory cache. The next operation refetches from the cloud.",
			Invoke: cmdRefresh,
		},
		{
			Name:   "delete",
			Usage:  "delete <cluster>",
			Help:   "Delete a cluster template from the template directory.",
			Invoke: cmdDelete,
		},
		{
			Name:   "help",
			Usage:  "help [command]",
			Help:   "List commands, or show the full description of one command.",
			Invoke: nil, // wired by the prompt loop, it needs the registry
		},
		{
			Name:   "exit",
			Usage:  "exit",
			Help:   "Close all sessions and leave the console.",
			Invoke: func(context.Context, *Context, []string) error { return errExit },
		},
	}
}

func cmdShow(ctx context.Context, env *Context, args []string) error {
	verbose := false
	target := ""
	for _, arg := range args {
		if arg == "-v" {
			verbose = true
			continue
		}
		target = arg
	}

	var nodes []*fleet.Node
	var err error
	if target == "" {
		nodes, err = env.Resolver.AllNodes(ctx)
	} else {
		nodes, err = env.Resolver.Resolve(ctx, target)
	}
	if err != nil {
		return err
	}

	templates, err := env.Templates.Templates()
	if err != nil {
		return err
	}
	env.Out.ShowNodes(nodes, templates, verbose)
	return nil
}

func cmdClusters(ctx context.Context, env *Context, args []string) error {
	templates, err := env.Templates.Templates()
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		env.Out.Printf("no cluster templates configured\n")
		return nil
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tpl := templates[name]
		marker := "  "
		if name == env.Resolver.Current() {
			marker = "* "
		}
		filter := tpl.Filter
		if filter == "" {
			filter = "tags=cluster:" + tpl.Name
		}
		env.Out.Printf("%s%-16s %-28s %s\n", marker, tpl.Name, filter, tpl.Region)
	}
	return nil
}

func cmdUse(ctx context.Context, env *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <cluster>")
	}
	if err := env.Resolver.Use(ctx, args[0]); err != nil {
		return err
	}
	env.Out.Printf("using cluster %s\n", args[0])
	return nil
}

func cmdUnuse(ctx context.Context, env *Context, args []string) error {
	return env.Resolver.ClearCluster(ctx)
}

func cmdAt(ctx context.Context, env *Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: at <target> <command...>")
	}
	target := args[0]
	line := strings.Join(args[1:], " ")

	nodes, err := env.Resolver.RunningNodes(ctx, target)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := env.Sessions.Command(node, line); err != nil {
			env.logger().Error("command failed", "node", node.DisplayName(), "err", err)
		}
	}
	return nil
}

func cmdShell(ctx context.Context, env *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: shell <target>")
	}
	nodes, err := env.Resolver.RunningNodes(ctx, args[0])
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	if len(nodes) > 1 {
		return fmt.Errorf("shell targets exactly one node, %q matches %d", args[0], len(nodes))
	}

	env.Out.Printf("press ctrl-c three times to return to the console. enter to continue: ")
	if _, err := env.readLine(); err != nil {
		return err
	}
	return env.Sessions.Shell(nodes[0])
}

func cmdPut(ctx context.Context, env *Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: put <target> <localglob> [dest]")
	}
	target, pattern := args[0], args[1]
	dest := ""
	if len(args) == 3 {
		dest = args[2]
	}

	locals, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	if len(locals) == 0 {
		env.Out.Printf("no local files match %s\n", pattern)
		return nil
	}

	nodes, err := env.Resolver.RunningNodes(ctx, target)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		for _, local := range locals {
			if err := env.Sessions.Put(node, local, dest); err != nil {
				env.logger().Error("put failed", "node", node.DisplayName(), "file", local, "err", err)
				break
			}
			env.Out.Printf("%s -> %s\n", local, node.DisplayName())
		}
	}
	return nil
}

func cmdGet(ctx context.Context, env *Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: get <target> <remotepath> [localdir]")
	}
	target, remote := args[0], args[1]
	localDir := ""
	if len(args) == 3 {
		localDir = args[2]
	}

	nodes, err := env.Resolver.RunningNodes(ctx, target)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := env.Sessions.Get(node, remote, localDir); err != nil {
			env.logger().Error("get failed", "node", node.DisplayName(), "file", remote, "err", err)
			continue
		}
		env.Out.Printf("%s <- %s\n", remote, node.DisplayName())
	}
	return nil
}

func cmdStart(ctx context.Context, env *Context, args []string) error {
	return lifecycle(ctx, env, args, "start", env.Provider.Start)
}

func cmdStop(ctx context.Context, env *Context, args []string) error {
	return lifecycle(ctx, env, args, "stop", env.Provider.Stop)
}

func cmdTerminate(ctx context.Context, env *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: terminate <target>")
	}
	nodes, err := liveNodes(ctx, env, args[0])
	if err != nil || len(nodes) == 0 {
		return err
	}

	env.Out.Printf("terminate %d node(s) matching %q? type yes to confirm: ", len(nodes), args[0])
	answer, err := env.readLine()
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) != "yes" {
		env.Out.Printf("aborted\n")
		return nil
	}
	return applyLifecycle(ctx, env, nodes, "terminate", env.Provider.Terminate)
}

func cmdRefresh(ctx context.Context, env *Context, args []string) error {
	return env.Resolver.Invalidate(ctx)
}

func cmdDelete(ctx context.Context, env *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <cluster>")
	}
	if env.Editor == nil {
		return fmt.Errorf("template store is read-only")
	}
	if err := env.Editor.Delete(args[0]); err != nil {
		return err
	}
	if env.Resolver.Current() == args[0] {
		return env.Resolver.ClearCluster(ctx)
	}
	return env.Resolver.Invalidate(ctx)
}

// lifecycle runs one provider operation over the target set with per-node
// isolation, then drops the inventory cache.
func lifecycle(ctx context.Context, env *Context, args []string, verb string, op func(context.Context, *fleet.Node) error) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <target>", verb)
	}
	nodes, err := liveNodes(ctx, env, args[0])
	if err != nil || len(nodes) == 0 {
		return err
	}
	return applyLifecycle(ctx, env, nodes, verb, op)
}

func applyLifecycle(ctx context.Context, env *Context, nodes []*fleet.Node, verb string, op func(context.Context, *fleet.Node) error) error {
	for _, node := range nodes {
		if err := op(ctx, node); err != nil {
			env.logger().Error(verb+" failed", "node", node.DisplayName(), "err", err)
			continue
		}
		env.Out.Printf("%s: %s requested\n", node.DisplayName(), verb)
	}
	return env.Resolver.Invalidate(ctx)
}

func liveNodes(ctx context.Context, env *Context, target string) ([]*fleet.Node, error) {
	nodes, err := env.Resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	var live []*fleet.Node
	for _, node := range nodes {
		if !node.Absent() {
			live = append(live, node)
		}
	}
	if len(live) == 0 {
		env.Out.Printf("no nodes match %s\n", target)
	}
	return live, nil
}
