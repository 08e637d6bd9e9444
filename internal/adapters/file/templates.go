// Package file loads cluster templates and user settings from the operator's
// config directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// templateDoc is the on-disk shape of one cluster template file:
//
//	cluster:
//	  name: web
//	  filter: tags=cluster:web   # optional
//	  region: eu-west-1          # optional
//	nodes:
//	  - name: web1
//	    selector: tags=role:frontend   # optional
//	    username: admin                # optional
//	    keyfile: ~/.flotilla/keys/x.pem
type templateDoc struct {
	Cluster struct {
		Name   string `yaml:"name"`
		Filter string `yaml:"filter"`
		Region string `yaml:"region"`
	} `yaml:"cluster"`
	Nodes []map[string]any `yaml:"nodes"`
}

// TemplateStore implements ports.TemplateStore over `<dir>/*.yaml` files.
// Files are re-read on every call so edits take effect on the next
// resolution without restarting the console.
type TemplateStore struct {
	dir string
}

// NewTemplateStore creates a template store over the given directory.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir}
}

// Templates returns every parsable cluster template, keyed by cluster name.
func (s *TemplateStore) Templates() (map[string]*fleet.ClusterTemplate, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*fleet.ClusterTemplate, len(paths))
	for _, path := range paths {
		tpl, err := readTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("cluster template %s: %w", path, err)
		}
		templates[tpl.Name] = tpl
	}
	return templates, nil
}

// Template returns one named template.
func (s *TemplateStore) Template(name string) (*fleet.ClusterTemplate, error) {
	templates, err := s.Templates()
	if err != nil {
		return nil, err
	}
	tpl, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fleet.ErrNoTemplate, name)
	}
	return tpl, nil
}

// Save writes a template to `<dir>/<name>.yaml`, creating the directory if
// needed, and returns the saved path.
func (s *TemplateStore) Save(tpl *fleet.ClusterTemplate) (string, error) {
	if tpl.Name == "" {
		return "", fleet.ErrBadTemplate
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	doc := templateDoc{}
	doc.Cluster.Name = tpl.Name
	doc.Cluster.Filter = tpl.Filter
	doc.Cluster.Region = tpl.Region
	for _, spec := range tpl.Nodes {
		node := map[string]any{"name": spec.Name}
		if spec.Selector != "" {
			node["selector"] = spec.Selector
		}
		if spec.Username != "" {
			node["username"] = spec.Username
		}
		if spec.KeyFile != "" {
			node["keyfile"] = spec.KeyFile
		}
		doc.Nodes = append(doc.Nodes, node)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, tpl.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Delete removes a named template file.
func (s *TemplateStore) Delete(name string) error {
	return os.Remove(filepath.Join(s.dir, name+".yaml"))
}

func readTemplate(path string) (*fleet.ClusterTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc templateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Cluster.Name == "" && doc.Cluster.Filter == "" {
		return nil, fleet.ErrBadTemplate
	}

	tpl := &fleet.ClusterTemplate{
		Name:   doc.Cluster.Name,
		Filter: doc.Cluster.Filter,
		Region: doc.Cluster.Region,
	}
	for _, raw := range doc.Nodes {
		var spec fleet.NodeSpec
		if err := mapstructure.Decode(raw, &spec); err != nil {
			return nil, fmt.Errorf("node spec: %w", err)
		}
		tpl.Nodes = append(tpl.Nodes, spec)
	}
	return tpl, nil
}
