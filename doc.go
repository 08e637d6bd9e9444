/*
Package flotilla is an operator console for fleets of remote compute nodes
reachable over SSH.

It reconciles declarative cluster templates against live cloud inventory, then
lets an operator run commands, interactive shells, and file transfers against
many nodes at once, demultiplexing their asynchronous output back to a single
console stream.

# Concept

A cluster template declares the nodes a cluster should have: a membership
filter selecting candidate instances, and an ordered list of node
specifications naming them. The resolver matches templates to inventory on
every operation, synthesizing absent placeholders for declared nodes with no
backing instance, and caches the inventory per region until a mutating
operation invalidates it.

Remote work goes through persistent per-node SSH sessions. One session exists
per node identity; a background demultiplexer collects output from every open
channel and flushes it to the console with node-tagged prefixes, so a command
fanned out to twenty nodes reads as twenty labelled result blocks.

# Usage

The `flotilla` command starts the interactive console:

	$ flotilla
	flotilla:> use web
	flotilla:web> at * uptime
	flotilla:web> get * /var/log/app.log /tmp

The data model (pkg/fleet) and the collaborator interfaces (pkg/ports) are
importable for embedding the resolution engine elsewhere.
*/
package flotilla

// Version is the release version stamped into the CLI.
const Version = "0.2.0"
