package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-io/flotilla/internal/adapters/memory"
	"github.com/flotilla-io/flotilla/internal/cli"
	"github.com/flotilla-io/flotilla/internal/remote"
	"github.com/flotilla-io/flotilla/internal/resolver"
	"github.com/flotilla-io/flotilla/pkg/fleet"
)

type fakeProvider struct {
	mu         sync.Mutex
	region     string
	nodes      []*fleet.Node
	started    []string
	stopped    []string
	terminated []string
}

func (p *fakeProvider) Region() string { return p.region }

func (p *fakeProvider) Refresh(ctx context.Context) ([]*fleet.Node, error) {
	return p.nodes, nil
}

func (p *fakeProvider) CreateAbsentNode(spec fleet.NodeSpec) *fleet.Node {
	return &fleet.Node{Name: spec.Name}
}

func (p *fakeProvider) Start(ctx context.Context, node *fleet.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, node.DisplayName())
	return nil
}

func (p *fakeProvider) Stop(ctx context.Context, node *fleet.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, node.DisplayName())
	return nil
}

func (p *fakeProvider) Terminate(ctx context.Context, node *fleet.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, node.DisplayName())
	return nil
}

func (p *fakeProvider) CreateKeyPair(ctx context.Context, name, dir string) (string, string, error) {
	return name, dir + "/" + name + ".pem", nil
}

type fakeTemplates struct {
	templates map[string]*fleet.ClusterTemplate
}

func (s *fakeTemplates) Templates() (map[string]*fleet.ClusterTemplate, error) {
	return s.templates, nil
}

func (s *fakeTemplates) Template(name string) (*fleet.ClusterTemplate, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return nil, fleet.ErrNoTemplate
	}
	return tpl, nil
}

type countingDialer struct {
	calls int
	lock  sync.Mutex
}

func (d *countingDialer) dial(node *fleet.Node) (remote.Transport, error) {
	d.lock.Lock()
	d.calls++
	d.lock.Unlock()
	return nil, context.DeadlineExceeded
}

func (d *countingDialer) count() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.calls
}

func testEnv(t *testing.T, input string) (*Console, *Context, *fakeProvider, *bytes.Buffer, *countingDialer) {
	t.Helper()

	provider := &fakeProvider{
		region: "us-east-1",
		nodes: []*fleet.Node{
			{ID: "i-1", State: "running", Tags: map[string]string{"cluster": "web", "name": "web1"}},
			{ID: "i-2", State: "running", Tags: map[string]string{"cluster": "web", "name": "web2"}},
		},
	}
	templates := &fakeTemplates{templates: map[string]*fleet.ClusterTemplate{
		"web": {Name: "web", Nodes: []fleet.NodeSpec{{Name: "web1"}, {Name: "web2"}}},
	}}

	out := &bytes.Buffer{}
	dialer := &countingDialer{}
	env := &Context{
		Resolver:  resolver.New(provider, templates, memory.New()),
		Sessions:  remote.NewManager(dialer.dial, out),
		Provider:  provider,
		Templates: templates,
		Out:       cli.NewConsole(out),
		In:        strings.NewReader(input),
	}
	c, err := New(env)
	require.NoError(t, err)
	return c, env, provider, out, dialer
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "x"}))
	assert.Error(t, r.Register(&Command{Name: "x"}))
	assert.Error(t, r.Register(&Command{Name: ""}))
}

func TestRegistryCommandsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "zeta"}))
	require.NoError(t, r.Register(&Command{Name: "alpha"}))

	cmds := r.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "alpha", cmds[0].Name)
	assert.Equal(t, "zeta", cmds[1].Name)
}

func TestDispatchUnknownCommand(t *testing.T) {
	c, _, _, _, _ := testEnv(t, "")
	err := c.dispatch(context.Background(), "frobnicate now")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestDispatchEmptyLine(t *testing.T) {
	c, _, _, _, _ := testEnv(t, "")
	assert.NoError(t, c.dispatch(context.Background(), "   "))
}

func TestShowListsClusters(t *testing.T) {
	c, _, _, out, _ := testEnv(t, "")
	require.NoError(t, c.dispatch(context.Background(), "show"))

	text := out.String()
	assert.Contains(t, text, "web1")
	assert.Contains(t, text, "web2")
}

func TestUseAndUnuse(t *testing.T) {
	c, env, _, _, _ := testEnv(t, "")
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, "use web"))
	assert.Equal(t, "web", env.Resolver.Current())

	require.Error(t, c.dispatch(ctx, "use nope"))
	assert.Equal(t, "web", env.Resolver.Current())

	require.NoError(t, c.dispatch(ctx, "unuse"))
	assert.Equal(t, "", env.Resolver.Current())
}

func TestPutZeroGlobMatchesIsNotAnError(t *testing.T) {
	c, env, _, out, dialer := testEnv(t, "")
	defer env.Sessions.Shutdown()

	pattern := t.TempDir() + "/nothing-here-*"
	require.NoError(t, c.dispatch(context.Background(), "put * "+pattern))

	// Zero matches means zero transfer attempts, not a failure.
	assert.Equal(t, 0, dialer.count())
	assert.Contains(t, out.String(), "no local files match")
}

func TestStartFansOutAndInvalidates(t *testing.T) {
	c, _, provider, _, _ := testEnv(t, "")
	ctx := context.Background()

	// Warm the cache, then mutate; the next resolution must refetch.
	_, err := c.env.Resolver.AllNodes(ctx)
	require.NoError(t, err)

	require.NoError(t, c.dispatch(ctx, "start web*"))
	assert.ElementsMatch(t, []string{"web1", "web2"}, provider.started)
}

func TestTerminateRequiresConfirmation(t *testing.T) {
	c, _, provider, _, _ := testEnv(t, "no\n")
	require.NoError(t, c.dispatch(context.Background(), "terminate web1"))
	assert.Empty(t, provider.terminated)
}

func TestTerminateConfirmed(t *testing.T) {
	c, _, provider, _, _ := testEnv(t, "yes\n")
	require.NoError(t, c.dispatch(context.Background(), "terminate web1"))
	assert.Equal(t, []string{"web1"}, provider.terminated)
}

func TestShellRejectsMultipleNodes(t *testing.T) {
	c, _, _, _, _ := testEnv(t, "\n")
	err := c.dispatch(context.Background(), "shell web*")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestHelpListsAndRendersCommands(t *testing.T) {
	c, _, _, out, _ := testEnv(t, "")
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, "help"))
	assert.Contains(t, out.String(), "put <target>")

	out.Reset()
	require.NoError(t, c.dispatch(ctx, "help get"))
	assert.Contains(t, out.String(), "collide")

	require.Error(t, c.dispatch(ctx, "help frobnicate"))
}

func TestRunExitsOnExitCommand(t *testing.T) {
	c, _, _, _, _ := testEnv(t, "exit\n")

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not exit")
	}
}

func TestRunExitsOnEOF(t *testing.T) {
	c, _, _, _, _ := testEnv(t, "clusters\n")

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not exit at EOF")
	}
}
