package remote

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// State is a session's lifecycle state.
type State int

const (
	// StateNotConnected means no authenticated transport is open.
	StateNotConnected State = iota
	// StateConnected means the handshake succeeded and the interactive shell
	// channel is open.
	StateConnected
	// StateShutdown is terminal; the channel and transport are closed.
	StateShutdown
)

// interrupt is the raw-mode exit trigger byte (ctrl-c).
const interrupt = 0x03

// Session is the persistent remote-shell state for one node: an interactive
// shell channel, an optional file-transfer sub-channel, and a line/raw mode
// flag. At most one live Session exists per node identity.
type Session struct {
	node   *fleet.Node
	dial   DialFunc
	logger *slog.Logger

	transport Transport
	shell     Channel
	transfer  Transfer

	state State
	echo  bool
	raw   atomic.Bool
	gen   atomic.Int64

	mu         sync.Mutex
	restoreTTY func() error

	// Receive buffer and banner-marker state, owned by the demux goroutine
	// once the session is registered.
	recvbuf    bytes.Buffer
	marker     string
	markerSent bool
	markerSeen bool
}

// NewSession creates a not-connected session bound to one node identity.
func NewSession(node *fleet.Node, dial DialFunc, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Session{
		node:   node,
		dial:   dial,
		logger: logger,
		echo:   true,
		// Banner suppression is dormant until ArmBannerMarker.
		markerSeen: true,
	}
}

// Node returns the node this session is bound to.
func (s *Session) Node() *fleet.Node {
	return s.node
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Connected reports whether the underlying transport is authenticated and
// active.
func (s *Session) Connected() bool {
	return s.transport != nil && s.transport.Connected()
}

// ArmBannerMarker enables login-banner suppression: the marker token is
// appended to the first command sent after login, and the demux discards
// buffered text preceding its second occurrence.
func (s *Session) ArmBannerMarker(marker string) {
	s.marker = marker
	s.markerSent = false
	s.markerSeen = false
}

// Login establishes the authenticated transport and opens the interactive
// shell channel. It is a no-op when already connected. Each successful login
// bumps the channel generation so stale reader goroutines cannot poison the
// demux.
func (s *Session) Login() error {
	if s.state == StateShutdown {
		return fleet.ErrNotConnected
	}
	if s.Connected() {
		return nil
	}

	s.logger.Debug("ssh login",
		"host", s.node.Addr(),
		"user", s.node.Username,
		"key", s.node.KeyFile,
	)

	transport, err := s.dial(s.node)
	if err != nil {
		s.state = StateNotConnected
		return fmt.Errorf("login to %s: %w", s.node.DisplayName(), err)
	}

	shell, err := transport.OpenShell()
	if err != nil {
		transport.Close()
		s.state = StateNotConnected
		return fmt.Errorf("login to %s: %w", s.node.DisplayName(), err)
	}

	s.transport = transport
	s.shell = shell
	s.transfer = nil
	s.state = StateConnected
	s.gen.Add(1)
	return nil
}

// Command writes one line plus a newline to the shell channel and returns
// immediately. There is no acknowledgment; results surface asynchronously via
// the demux. Requires a connected state and an active transport, otherwise it
// is a logged no-op.
func (s *Session) Command(line string) error {
	if s.state != StateConnected {
		s.logger.Info("session not connected", "node", s.node.DisplayName())
		return nil
	}
	if !s.Connected() {
		s.logger.Info("ssh session not connected, authed, or active", "node", s.node.DisplayName())
		return nil
	}

	if s.marker != "" && !s.markerSent {
		line = line + "; echo " + s.marker
		s.markerSent = true
	}

	if _, err := s.shell.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("sending command to %s: %w", s.node.DisplayName(), err)
	}
	return nil
}

// DisableEcho turns off remote shell echo and blanks the remote prompt so
// injected line commands do not echo back into the demuxed output.
func (s *Session) DisableEcho() error {
	s.logger.Info("disabling echo", "node", s.node.DisplayName())
	err := s.Command("stty -echo; export PS1=''")
	if err == nil {
		s.echo = false
	}
	return err
}

// EnableEcho restores remote shell echo and installs the raw-shell prompt
// tag.
func (s *Session) EnableEcho() error {
	s.logger.Info("enabling echo", "node", s.node.DisplayName())
	prompt := fmt.Sprintf(`rawshell:%s:\w\$ `, s.node.DisplayName())
	err := s.Command("stty echo; export PS1='" + prompt + "'")
	if err == nil {
		s.echo = true
	}
	return err
}

// Echo reports whether remote echo is currently enabled.
func (s *Session) Echo() bool {
	return s.echo
}

// RawMode reports whether the session is in raw interactive passthrough.
// Read by the demux goroutine.
func (s *Session) RawMode() bool {
	return s.raw.Load()
}

// RawShell runs the raw interactive input loop: the local terminal switches
// to unbuffered, unechoed input and every keystroke is forwarded over the
// channel until three consecutive interrupt characters. Terminal attributes
// are restored on every exit path.
func (s *Session) RawShell(in io.Reader, tty TTY) error {
	if s.state != StateConnected {
		s.logger.Info("session not connected", "node", s.node.DisplayName())
		return nil
	}

	s.raw.Store(true)
	defer s.raw.Store(false)

	restore, err := tty.MakeRaw()
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	s.setRestore(restore)
	defer s.RevertTTY()

	interrupts := 0
	interrupted := false
	buf := make([]byte, 1)
	for s.raw.Load() {
		n, err := in.Read(buf)
		if err != nil || n == 0 {
			break
		}

		if buf[0] == interrupt {
			interrupts++
		} else {
			interrupts = 0
		}
		if interrupts > 2 {
			interrupted = true
			break
		}

		if _, err := s.shell.Write(buf[:n]); err != nil {
			s.logger.Error("raw shell write failed", "node", s.node.DisplayName(), "err", err)
			return err
		}
	}

	if interrupted {
		s.logger.Info("switching back to line buffered commands", "node", s.node.DisplayName())
		return s.DisableEcho()
	}
	return nil
}

// setRestore records the terminal restore function for the active raw loop.
func (s *Session) setRestore(restore func() error) {
	s.mu.Lock()
	s.restoreTTY = restore
	s.mu.Unlock()
}

// RevertTTY restores the local terminal attributes saved when raw mode was
// entered. Safe to call from any goroutine and idempotent.
func (s *Session) RevertTTY() {
	s.mu.Lock()
	restore := s.restoreTTY
	s.restoreTTY = nil
	s.mu.Unlock()

	s.raw.Store(false)
	if restore != nil {
		if err := restore(); err != nil {
			s.logger.Warn("restoring terminal attributes", "err", err)
		}
	}
}

// openTransfer lazily opens the file-transfer sub-channel, once, and reuses
// it thereafter.
func (s *Session) openTransfer() (Transfer, error) {
	if s.transfer != nil {
		return s.transfer, nil
	}
	if s.transport == nil || !s.transport.Connected() {
		return nil, fleet.ErrNotConnected
	}
	transfer, err := s.transport.OpenTransfer()
	if err != nil {
		return nil, err
	}
	s.transfer = transfer
	return transfer, nil
}

// Put uploads a local file over the transfer sub-channel. The remote name
// defaults to the local base name.
func (s *Session) Put(localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("file does not exist locally: %s", localPath)
	}

	transfer, err := s.openTransfer()
	if err != nil {
		return err
	}

	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}
	if err := transfer.Put(localPath, remotePath); err != nil {
		return fmt.Errorf("upload to %s: %w", s.node.DisplayName(), err)
	}
	s.logger.Info("uploaded", "node", s.node.DisplayName(), "file", remotePath)
	return nil
}

// Get downloads a remote file over the transfer sub-channel into localDir
// (or the current directory), saved as `<base>.<nodeName>` so fan-out
// downloads never collide.
func (s *Session) Get(remotePath, localDir string) error {
	if localDir != "" {
		info, err := os.Stat(localDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("dir does not exist locally: %s", localDir)
		}
	}

	transfer, err := s.openTransfer()
	if err != nil {
		return err
	}

	localPath := filepath.Base(remotePath)
	if localDir != "" {
		localPath = filepath.Join(localDir, localPath)
	}
	localPath = localPath + "." + s.node.DisplayName()

	if err := transfer.Get(remotePath, localPath); err != nil {
		return fmt.Errorf("download from %s: %w", s.node.DisplayName(), err)
	}
	s.logger.Info("downloaded", "node", s.node.DisplayName(), "file", localPath)
	return nil
}

// Shutdown closes the channel and transport. Terminal state.
func (s *Session) Shutdown() {
	s.state = StateShutdown
	if s.transfer != nil {
		s.transfer.Close()
		s.transfer = nil
	}
	if s.shell != nil {
		s.shell.Close()
		s.shell = nil
	}
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.logger.Info("closed ssh", "node", s.node.DisplayName())
}
