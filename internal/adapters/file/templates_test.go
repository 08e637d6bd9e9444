package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

const webTemplateYAML = `cluster:
  name: web
  filter: tags=cluster:web
  region: us-east-1
nodes:
  - name: web1
    username: admin
    keyfile: /keys/web.pem
  - name: web2
    selector: tags=role:backend
`

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTemplatesParsesClusterFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "web.yaml", webTemplateYAML)
	writeTemplate(t, dir, "db.yaml", "cluster:\n  name: db\nnodes:\n  - name: db1\n")

	store := NewTemplateStore(dir)
	templates, err := store.Templates()
	require.NoError(t, err)
	require.Len(t, templates, 2)

	web := templates["web"]
	require.NotNil(t, web)
	assert.Equal(t, "tags=cluster:web", web.Filter)
	assert.Equal(t, "us-east-1", web.Region)
	require.Len(t, web.Nodes, 2)
	assert.Equal(t, fleet.NodeSpec{Name: "web1", Username: "admin", KeyFile: "/keys/web.pem"}, web.Nodes[0])
	assert.Equal(t, "tags=role:backend", web.Nodes[1].Selector)
}

func TestTemplateUnknownName(t *testing.T) {
	store := NewTemplateStore(t.TempDir())
	_, err := store.Template("nope")
	assert.True(t, errors.Is(err, fleet.ErrNoTemplate))
}

func TestTemplateRejectsNamelessFilterless(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "bad.yaml", "nodes:\n  - name: orphan\n")

	_, err := NewTemplateStore(dir).Templates()
	assert.True(t, errors.Is(err, fleet.ErrBadTemplate))
}

func TestTemplatesReReadOnEveryCall(t *testing.T) {
	dir := t.TempDir()
	store := NewTemplateStore(dir)

	templates, err := store.Templates()
	require.NoError(t, err)
	assert.Empty(t, templates)

	writeTemplate(t, dir, "web.yaml", webTemplateYAML)
	templates, err = store.Templates()
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestSaveRoundTrip(t *testing.T) {
	store := NewTemplateStore(filepath.Join(t.TempDir(), "clusters"))

	tpl := &fleet.ClusterTemplate{
		Name:   "batch",
		Region: "eu-west-1",
		Nodes: []fleet.NodeSpec{
			{Name: "worker1", Username: "ubuntu"},
			{Name: "worker2", Selector: "id=i-42"},
		},
	}
	path, err := store.Save(tpl)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := store.Template("batch")
	require.NoError(t, err)
	assert.Equal(t, tpl.Name, loaded.Name)
	assert.Equal(t, tpl.Region, loaded.Region)
	assert.Equal(t, tpl.Nodes, loaded.Nodes)
}

func TestSaveRejectsUnnamed(t *testing.T) {
	_, err := NewTemplateStore(t.TempDir()).Save(&fleet.ClusterTemplate{})
	assert.True(t, errors.Is(err, fleet.ErrBadTemplate))
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "web.yaml", webTemplateYAML)

	store := NewTemplateStore(dir)
	require.NoError(t, store.Delete("web"))

	templates, err := store.Templates()
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestUserDataKeyMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "userdata.yaml")
	ud := NewUserData(path)

	mapping, err := ud.KeyMapping()
	require.NoError(t, err)
	assert.Empty(t, mapping, "a missing file is an empty mapping")

	mapping["us-east-1#useast1_flotilla"] = "/keys/useast1_flotilla.pem"
	require.NoError(t, ud.SetKeyMapping(mapping))

	reloaded, err := NewUserData(path).KeyMapping()
	require.NoError(t, err)
	assert.Equal(t, mapping, reloaded)
}
