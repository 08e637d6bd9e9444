package remote

import (
	"io"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Channel is one bidirectional byte stream to a remote shell.
type Channel interface {
	io.ReadWriteCloser
}

// Transfer is the file-transfer sub-channel bound to a session's transport.
// It is opened lazily, once, and reused for every put/get on the session.
type Transfer interface {
	// Put uploads a local file to the remote path.
	Put(localPath, remotePath string) error

	// Get downloads a remote file to the local path.
	Get(remotePath, localPath string) error

	Close() error
}

// Transport is one authenticated connection to a node.
type Transport interface {
	// Connected reports whether the transport is still authenticated and
	// active.
	Connected() bool

	// OpenShell opens an interactive shell channel with a pseudo-terminal.
	OpenShell() (Channel, error)

	// OpenTransfer opens the file-transfer sub-channel.
	OpenTransfer() (Transfer, error)

	Close() error
}

// DialFunc opens an authenticated transport to a node. Tests inject fakes;
// production wiring uses SSHDialer.Dial.
type DialFunc func(node *fleet.Node) (Transport, error)
