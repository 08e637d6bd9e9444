package remote

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Manager holds the registry of node identity to remote session and
// registers sessions with the demultiplexer. The demux is started lazily on
// the first session and joined on shutdown.
//
// The registry is written by the command goroutine (session creation) and by
// the demux goroutine (disconnect removal), so it is mutex-guarded.
type Manager struct {
	dial    DialFunc
	console io.Writer
	logger  *slog.Logger
	tty     TTY
	input   io.Reader
	opts    []DemuxOption

	mu       sync.Mutex
	sessions map[string]*Session
	demux    *Demux
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger configures a logger shared with created sessions.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTTY overrides the local terminal controller used for raw shells.
func WithTTY(tty TTY) ManagerOption {
	return func(m *Manager) {
		m.tty = tty
	}
}

// WithInput overrides the local input stream forwarded in raw shells.
func WithInput(in io.Reader) ManagerOption {
	return func(m *Manager) {
		m.input = in
	}
}

// WithDemuxOptions forwards options to the lazily started demux.
func WithDemuxOptions(opts ...DemuxOption) ManagerOption {
	return func(m *Manager) {
		m.opts = opts
	}
}

// NewManager creates a session manager dialing transports with dial and
// writing demultiplexed output to console.
func NewManager(dial DialFunc, console io.Writer, opts ...ManagerOption) *Manager {
	m := &Manager{
		dial:     dial,
		console:  console,
		logger:   logging.NewNop(),
		tty:      StdinTTY{},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRefreshCallback installs the idle-tick redraw callback on the demux.
func (m *Manager) SetRefreshCallback(fn func()) {
	m.ensureDemux().SetRefreshCallback(fn)
}

func (m *Manager) ensureDemux() *Demux {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.demux == nil {
		m.demux = NewDemux(m.console, m.remove, append(m.opts, WithDemuxLogger(m.logger))...)
	}
	return m.demux
}

// SessionFor returns the live session for a node, creating it or re-logging
// in transparently when the transport is no longer authenticated and active.
func (m *Manager) SessionFor(node *fleet.Node) (*Session, error) {
	if node.Absent() {
		return nil, fleet.ErrNodeAbsent
	}

	demux := m.ensureDemux()

	m.mu.Lock()
	s := m.sessions[node.ID]
	m.mu.Unlock()

	if s == nil {
		s = NewSession(node, m.dial, m.logger)
		if err := s.Login(); err != nil {
			return nil, err
		}
		demux.Start(s)

		m.mu.Lock()
		m.sessions[node.ID] = s
		m.mu.Unlock()
		return s, nil
	}

	if !s.Connected() {
		m.logger.Info("no ssh connection, logging in", "node", node.DisplayName())
		if err := s.Login(); err != nil {
			return nil, err
		}
		// The shell channel changed; hand the new one to the demux.
		demux.Start(s)
	}
	return s, nil
}

// remove drops a session whose channel disconnected. Called from the demux
// goroutine. A session that disconnected mid raw shell gets its terminal
// attributes restored.
func (m *Manager) remove(s *Session) {
	if s.RawMode() {
		m.logger.Info("logged out of ssh session, press enter to continue")
		s.RevertTTY()
	}

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess == s {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
}

// Command resolves the node's session and injects one line into its shell,
// disabling remote echo first so the command does not echo back into the
// demuxed output.
func (m *Manager) Command(node *fleet.Node, line string) error {
	s, err := m.SessionFor(node)
	if err != nil {
		return err
	}
	if s.Echo() {
		if err := s.DisableEcho(); err != nil {
			return err
		}
	}
	return s.Command(line)
}

// Shell enters a raw interactive shell on the node: remote echo and prompt
// are restored, then local keystrokes are forwarded byte-for-byte until
// three consecutive interrupts. Terminal attributes are restored on every
// exit path.
func (m *Manager) Shell(node *fleet.Node) error {
	s, err := m.SessionFor(node)
	if err != nil {
		return err
	}
	defer s.RevertTTY()

	// Always re-issue: a fresh session has echo on but no prompt tag yet.
	if err := s.EnableEcho(); err != nil {
		return err
	}

	in := m.input
	if in == nil {
		in = os.Stdin
	}
	return s.RawShell(in, m.tty)
}

// Put uploads a local file to the node over its transfer sub-channel.
func (m *Manager) Put(node *fleet.Node, localPath, remotePath string) error {
	s, err := m.SessionFor(node)
	if err != nil {
		return err
	}
	return s.Put(localPath, remotePath)
}

// Get downloads a remote file from the node into localDir.
func (m *Manager) Get(node *fleet.Node, remotePath, localDir string) error {
	s, err := m.SessionFor(node)
	if err != nil {
		return err
	}
	return s.Get(remotePath, localDir)
}

// Sessions returns the number of live sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown joins the demux, then closes every open session. A session still
// in raw mode restores its terminal attributes before closing.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	demux := m.demux
	m.demux = nil
	m.mu.Unlock()

	if demux != nil {
		demux.Shutdown()
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if s.RawMode() {
			s.RevertTTY()
		}
		s.Shutdown()
	}
	metricOpenSessions.Set(0)
}
