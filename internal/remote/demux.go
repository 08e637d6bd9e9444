package remote

import (
	"bytes"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/flotilla-io/flotilla/internal/logging"
)

const (
	// readChunk bounds a single channel read.
	readChunk = 1024

	// defaultIdleInterval is the bounded readiness wait; buffered output is
	// flushed on ticks in which no channel produced data.
	defaultIdleInterval = 500 * time.Millisecond
)

// readEvent carries one bounded chunk (or a terminal error) from a session's
// reader goroutine to the demux owner loop. gen identifies the shell channel
// generation so events from a replaced channel are dropped.
type readEvent struct {
	id   string
	gen  int64
	data []byte
	err  error
}

// Demux is the receive demultiplexer for all open shell channels.
//
// One goroutine owns the session registry; per-session reader goroutines feed
// it over a channel, so registry mutation never races between the command
// goroutine and disconnect handling. Raw-mode bytes are written straight to
// the console; line-mode bytes accumulate in per-session buffers flushed with
// node-tagged prefixes on idle ticks.
type Demux struct {
	console  io.Writer
	logger   *slog.Logger
	idle     time.Duration
	prefix   func(name string) string
	onRemove func(*Session)
	refresh  func()

	register chan *Session
	events   chan readEvent
	setHook  chan func()
	done     chan struct{}
	stopped  chan struct{}
}

// DemuxOption configures the Demux.
type DemuxOption func(*Demux)

// WithIdleInterval overrides the idle flush interval.
func WithIdleInterval(d time.Duration) DemuxOption {
	return func(x *Demux) {
		x.idle = d
	}
}

// WithPrefix overrides the node-tag prefix applied to flushed lines.
func WithPrefix(fn func(name string) string) DemuxOption {
	return func(x *Demux) {
		x.prefix = fn
	}
}

// WithDemuxLogger configures a logger for demux events.
func WithDemuxLogger(logger *slog.Logger) DemuxOption {
	return func(x *Demux) {
		x.logger = logger
	}
}

// NewDemux starts the demultiplexer's background loop. console receives all
// remote output; onRemove is told when a session's channel disconnects.
func NewDemux(console io.Writer, onRemove func(*Session), opts ...DemuxOption) *Demux {
	d := &Demux{
		console:  console,
		logger:   logging.NewNop(),
		idle:     defaultIdleInterval,
		prefix:   func(name string) string { return "[" + name + "] " },
		onRemove: onRemove,
		register: make(chan *Session),
		events:   make(chan readEvent, 64),
		setHook:  make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.receiveLoop()
	return d
}

// Start begins demultiplexing output for a session. Re-registering a session
// after a transparent re-login replaces its channel reader.
func (d *Demux) Start(s *Session) {
	select {
	case d.register <- s:
	case <-d.done:
	}
}

// SetRefreshCallback installs a callback invoked once per idle tick after
// buffered output was flushed, e.g. to redraw an interactive prompt.
func (d *Demux) SetRefreshCallback(fn func()) {
	select {
	case d.setHook <- fn:
	case <-d.done:
	}
}

// Shutdown stops the background loop and waits for it to exit. Registered
// sessions are left open; the session manager closes them afterwards.
func (d *Demux) Shutdown() {
	select {
	case <-d.done:
		return
	default:
	}
	close(d.done)
	<-d.stopped
}

// receiveLoop is the single owner of the {session-id -> session} registry.
func (d *Demux) receiveLoop() {
	defer close(d.stopped)

	sessions := make(map[string]*Session)
	ticker := time.NewTicker(d.idle)
	defer ticker.Stop()

	// busy marks ticks on which at least one channel had data, so flushing
	// happens only on genuinely idle ticks.
	busy := false

	for {
		select {
		case <-d.done:
			return

		case s := <-d.register:
			sessions[s.node.ID] = s
			metricOpenSessions.Set(float64(len(sessions)))
			go d.readLoop(s)

		case fn := <-d.setHook:
			d.refresh = fn

		case ev := <-d.events:
			s, ok := sessions[ev.id]
			if !ok || ev.gen != s.gen.Load() {
				// Deregistered or stale channel: never deliver its bytes.
				continue
			}
			busy = true

			if ev.err != nil {
				delete(sessions, ev.id)
				metricOpenSessions.Set(float64(len(sessions)))
				d.logger.Info("ssh session disconnected", "node", s.node.DisplayName())
				if d.onRemove != nil {
					d.onRemove(s)
				}
				continue
			}

			metricBytesReceived.Add(float64(len(ev.data)))
			if s.RawMode() {
				d.console.Write(ev.data)
			} else {
				s.recvbuf.Write(ev.data)
			}

		case <-ticker.C:
			if busy {
				busy = false
				continue
			}
			if d.flushAll(sessions) && d.refresh != nil {
				d.refresh()
			}
		}
	}
}

// readLoop reads bounded chunks from one session's shell channel until EOF
// or error, feeding the owner loop. A zero-length read signals remote
// disconnect.
func (d *Demux) readLoop(s *Session) {
	id := s.node.ID
	gen := s.gen.Load()
	shell := s.shell

	buf := make([]byte, readChunk)
	for {
		n, err := shell.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case d.events <- readEvent{id: id, gen: gen, data: data}:
			case <-d.done:
				return
			}
		}
		if err != nil || n == 0 {
			select {
			case d.events <- readEvent{id: id, gen: gen, err: io.EOF}:
			case <-d.done:
			}
			return
		}
	}
}

// flushAll writes every non-raw session's buffered output to the console,
// prefixing each line with the node's display name. Iteration is in sorted
// node-id order so flush order is deterministic.
func (d *Demux) flushAll(sessions map[string]*Session) bool {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	wrote := false
	for _, id := range ids {
		if d.flush(sessions[id]) {
			wrote = true
		}
	}
	return wrote
}

func (d *Demux) flush(s *Session) bool {
	if s.RawMode() || s.recvbuf.Len() == 0 {
		return false
	}

	// Discard the login banner: everything before the second occurrence of
	// the per-login marker token, once per session.
	if !s.markerSeen && s.marker != "" {
		b := s.recvbuf.Bytes()
		marker := []byte(s.marker)
		first := bytes.Index(b, marker)
		if first >= 0 {
			last := bytes.LastIndex(b, marker)
			if last != first {
				s.markerSeen = true
				rest := make([]byte, len(b)-(last+len(marker)))
				copy(rest, b[last+len(marker):])
				s.recvbuf.Reset()
				s.recvbuf.Write(rest)
			}
		}
	}

	text := s.recvbuf.String()
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.recvbuf.Reset()

	prefix := d.prefix(s.node.DisplayName())
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(prefix)
	out.WriteString(strings.ReplaceAll(text, "\n", "\n"+prefix))
	out.WriteString("\n")
	d.console.Write([]byte(out.String()))

	metricFlushes.Inc()
	return true
}
