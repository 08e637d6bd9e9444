package remote

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// fakeChannel is an in-memory shell channel. Reads block on a data channel;
// Close unblocks them with EOF, like a remote hangup.
type fakeChannel struct {
	mu    sync.Mutex
	wrote bytes.Buffer

	reads     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Read(p []byte) (int, error) {
	// Drain queued data before reporting the hangup.
	select {
	case data := <-c.reads:
		return copy(p, data), nil
	default:
	}
	select {
	case data := <-c.reads:
		return copy(p, data), nil
	case <-c.closed:
		return 0, io.EOF
	}
}

func (c *fakeChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wrote.Write(p)
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// send queues bytes for the next Read.
func (c *fakeChannel) send(data string) {
	c.reads <- []byte(data)
}

func (c *fakeChannel) written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wrote.String()
}

// fakeTransfer copies files through the local filesystem.
type fakeTransfer struct {
	mu     sync.Mutex
	puts   [][2]string
	gets   [][2]string
	closed bool
}

func (t *fakeTransfer) Put(localPath, remotePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.puts = append(t.puts, [2]string{localPath, remotePath})
	return nil
}

func (t *fakeTransfer) Get(remotePath, localPath string) error {
	t.mu.Lock()
	t.gets = append(t.gets, [2]string{remotePath, localPath})
	t.mu.Unlock()
	return os.WriteFile(localPath, []byte("remote content"), 0o644)
}

func (t *fakeTransfer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type fakeTransport struct {
	channel  *fakeChannel
	transfer *fakeTransfer
	alive    atomic.Bool
}

func newFakeTransport() *fakeTransport {
	t := &fakeTransport{
		channel:  newFakeChannel(),
		transfer: &fakeTransfer{},
	}
	t.alive.Store(true)
	return t
}

func (t *fakeTransport) Connected() bool { return t.alive.Load() }

func (t *fakeTransport) OpenShell() (Channel, error) { return t.channel, nil }

func (t *fakeTransport) OpenTransfer() (Transfer, error) { return t.transfer, nil }

func (t *fakeTransport) Close() error {
	t.alive.Store(false)
	t.channel.Close()
	return nil
}

// fakeDialer hands out one transport per dial and counts them.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	err        error
}

func (d *fakeDialer) dial(node *fleet.Node) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// fakeTTY records raw-mode transitions.
type fakeTTY struct {
	mu       sync.Mutex
	raws     int
	restores int
	err      error
}

func (t *fakeTTY) MakeRaw() (func() error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	t.raws++
	return func() error {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.restores++
		return nil
	}, nil
}

func (t *fakeTTY) counts() (raws, restores int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raws, t.restores
}

// syncBuffer is a goroutine-safe console writer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runningNode(id, name string) *fleet.Node {
	return &fleet.Node{ID: id, Name: name, State: fleet.StateRunning, PublicIP: "10.0.0.1"}
}
