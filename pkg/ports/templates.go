package ports

import "github.com/flotilla-io/flotilla/pkg/fleet"

// TemplateStore yields named cluster templates.
type TemplateStore interface {
	// Templates returns every known cluster template, keyed by cluster name.
	Templates() (map[string]*fleet.ClusterTemplate, error)

	// Template returns one named template.
	// Returns fleet.ErrNoTemplate if the name is unknown.
	Template(name string) (*fleet.ClusterTemplate, error)
}
