package remote

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

func newTestManager(dialer *fakeDialer) *Manager {
	return NewManager(dialer.dial, &syncBuffer{},
		WithTTY(&fakeTTY{}),
		WithDemuxOptions(WithIdleInterval(testIdle)),
	)
}

func TestSessionForRejectsAbsentNode(t *testing.T) {
	m := newTestManager(&fakeDialer{})
	defer m.Shutdown()

	_, err := m.SessionFor(&fleet.Node{Name: "web3"})
	assert.True(t, errors.Is(err, fleet.ErrNodeAbsent))
}

func TestSessionForReusesLiveSession(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	node := runningNode("i-1", "web1")
	first, err := m.SessionFor(node)
	require.NoError(t, err)
	second, err := m.SessionFor(node)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dialer.dials())
	assert.Equal(t, 1, m.Sessions())
}

func TestSessionForTransparentRelogin(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	node := runningNode("i-1", "web1")
	s, err := m.SessionFor(node)
	require.NoError(t, err)

	// Dead transport: the next use re-dials on the same session.
	dialer.last().alive.Store(false)
	again, err := m.SessionFor(node)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 2, dialer.dials())
}

func TestSessionForDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("auth failed")}
	m := newTestManager(dialer)
	defer m.Shutdown()

	_, err := m.SessionFor(runningNode("i-1", "web1"))
	require.Error(t, err)
	assert.Equal(t, 0, m.Sessions())

	// A later attempt retries the login.
	dialer.err = nil
	_, err = m.SessionFor(runningNode("i-1", "web1"))
	assert.NoError(t, err)
}

func TestCommandDisablesEchoFirst(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	node := runningNode("i-1", "web1")
	require.NoError(t, m.Command(node, "uptime"))

	wrote := dialer.last().channel.written()
	assert.Equal(t, "stty -echo; export PS1=''\nuptime\n", wrote)

	// Echo is only disabled once.
	require.NoError(t, m.Command(node, "date"))
	assert.Equal(t, "stty -echo; export PS1=''\nuptime\ndate\n", dialer.last().channel.written())
}

func TestShellInstallsPromptTagOnFreshSession(t *testing.T) {
	dialer := &fakeDialer{}
	tty := &fakeTTY{}
	m := NewManager(dialer.dial, &syncBuffer{},
		WithTTY(tty),
		WithInput(strings.NewReader("\x03\x03\x03")),
		WithDemuxOptions(WithIdleInterval(testIdle)),
	)
	defer m.Shutdown()

	// A fresh session starts with remote echo on, but the shell prompt tag
	// is only installed by the enable command. It must go out anyway.
	require.NoError(t, m.Shell(runningNode("i-1", "web1")))

	written := dialer.last().channel.written()
	assert.Contains(t, written, "stty echo")
	assert.Contains(t, written, "rawshell:web1")
	_, restores := tty.counts()
	assert.Equal(t, 1, restores)
}

func TestDisconnectedSessionIsDropped(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	node := runningNode("i-1", "web1")
	_, err := m.SessionFor(node)
	require.NoError(t, err)

	dialer.last().channel.Close()
	assert.Eventually(t, func() bool {
		return m.Sessions() == 0
	}, time.Second, testIdle)
}

func TestFanOutGetSuffixesPerNode(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	dir := t.TempDir()
	for _, node := range []*fleet.Node{runningNode("i-1", "w1"), runningNode("i-2", "w2")} {
		require.NoError(t, m.Get(node, "/opt/out.txt", dir))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"out.txt.w1", "out.txt.w2"}, names)
}

func TestManagerPut(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	defer m.Shutdown()

	local := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(local, []byte("a: 1"), 0o644))

	require.NoError(t, m.Put(runningNode("i-1", "w1"), local, ""))
	require.Len(t, dialer.last().transfer.puts, 1)
	assert.Equal(t, "conf.yaml", dialer.last().transfer.puts[0][1])
}

func TestShutdownClosesAllSessions(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)

	s, err := m.SessionFor(runningNode("i-1", "w1"))
	require.NoError(t, err)
	_, err = m.SessionFor(runningNode("i-2", "w2"))
	require.NoError(t, err)

	m.Shutdown()
	assert.Equal(t, 0, m.Sessions())
	assert.Equal(t, StateShutdown, s.State())
	for _, tr := range dialer.transports {
		assert.False(t, tr.Connected())
	}
}
