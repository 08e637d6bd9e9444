// Package cli renders fleet state to the operator's terminal and carries the
// option structs shared by the cobra entrypoints.
package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/muesli/termenv"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Console renders node tables, cluster headers, and demux output prefixes.
// Writes are serialized: the demux goroutine and the command goroutine both
// print here.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	profile termenv.Profile
}

// NewConsole creates a console over the given writer, detecting the color
// profile of the attached terminal.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		profile: termenv.ColorProfile(),
	}
}

// Write implements io.Writer so the console can serve as the demux sink.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Printf writes a formatted line.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) color(s string, color termenv.ANSIColor) string {
	return termenv.String(s).Foreground(c.profile.Color(fmt.Sprintf("%d", int(color)))).String()
}

// NodePrefix returns the bolded `[name] ` tag prepended to each demuxed
// output line.
func (c *Console) NodePrefix(name string) string {
	return termenv.String("["+name+"] ").Bold().String()
}

// Prompt returns the console prompt, tagged with the current cluster when
// one is loaded.
func (c *Console) Prompt(cluster string) string {
	tag := "flotilla"
	if cluster != "" {
		tag = "flotilla:" + cluster
	}
	return c.color(tag, termenv.ANSIGreen) + "> "
}

const nodeRowFormat = "%-14s %-12s %-12s %-20s %-16s %-16s"

// ShowNodes prints the node summary table grouped by cluster. Verbose adds
// each node's extended fields below its row, and cluster filters to the
// cluster headers.
func (c *Console) ShowNodes(nodes []*fleet.Node, templates map[string]*fleet.ClusterTemplate, verbose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(nodes) == 0 {
		fmt.Fprintln(c.out, "no nodes")
		return
	}

	header := fmt.Sprintf(nodeRowFormat,
		"Name", "Type", "State", "ID", "IP", "int_IP")
	fmt.Fprintln(c.out, "    "+c.color(header, termenv.ANSIGreen))

	prevCluster := "\x00"
	for _, node := range nodes {
		if node.Cluster != prevCluster {
			prevCluster = node.Cluster
			fmt.Fprintln(c.out)
			if node.Cluster == "" {
				fmt.Fprintln(c.out, "Unassigned:")
			} else if tpl := templates[node.Cluster]; verbose && tpl != nil && tpl.Filter != "" {
				fmt.Fprintf(c.out, "%s (%s)\n", node.Cluster, tpl.Filter)
			} else {
				fmt.Fprintln(c.out, node.Cluster)
			}
		}

		row := node.Row()
		if node.Absent() {
			row[2] = c.color("absent", termenv.ANSIRed)
		}
		line := fmt.Sprintf(nodeRowFormat, row[0], row[1], row[2], row[3], row[4], row[5])
		fmt.Fprintln(c.out, "    "+c.color(line, termenv.ANSICyan))

		if verbose {
			for _, kv := range node.ExtendedData() {
				detail := fmt.Sprintf("%14s %s : %s", "", kv.Key, kv.Value)
				fmt.Fprintln(c.out, "    "+c.color(detail, termenv.ANSIBlue))
			}
		}
	}
	fmt.Fprintln(c.out)
}
