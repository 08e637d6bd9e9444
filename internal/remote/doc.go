// Package remote maintains one persistent SSH session per fleet node and
// demultiplexes asynchronous output from all open shell channels onto a
// single console stream.
//
// A Session owns an interactive shell channel with a pseudo-terminal and an
// optional SFTP sub-channel. Commands are injected fire-and-forget into the
// remote shell in line mode; a raw mode forwards local keystrokes
// byte-for-byte until three consecutive interrupts. The Demux runs one
// background goroutine for the process lifetime, routing received bytes to
// per-session buffers (line mode) or straight to the console (raw mode) and
// flushing buffered output with node-tagged prefixes on idle ticks.
package remote
