package fleet

import "strings"

// NodeSpec is one declared node inside a cluster template.
//
// Selector is an optional `key=value` filter matching the spec to live
// inventory; when absent, the implicit filter `tags=name:<Name>` is used.
// Username and KeyFile override the provider defaults for matched nodes.
type NodeSpec struct {
	Selector string `yaml:"selector,omitempty" mapstructure:"selector"`
	Name     string `yaml:"name" mapstructure:"name"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	KeyFile  string `yaml:"keyfile,omitempty" mapstructure:"keyfile"`
}

// ClusterTemplate is a named declarative grouping of node specifications plus
// a membership filter.
type ClusterTemplate struct {
	Name   string     `yaml:"name"`
	Filter string     `yaml:"filter,omitempty"`
	Region string     `yaml:"region,omitempty"`
	Nodes  []NodeSpec `yaml:"nodes"`
}

// MembershipFilter returns the key/value filter selecting this template's
// candidate nodes. An absent filter defaults to the tag filter
// `tags=cluster:<name>`; a filter must otherwise be of the form key=value.
func (t *ClusterTemplate) MembershipFilter() (key, value string, err error) {
	if t.Filter == "" {
		if t.Name == "" {
			return "", "", ErrBadTemplate
		}
		return "tags", "cluster:" + t.Name, nil
	}
	key, value, ok := strings.Cut(t.Filter, "=")
	if !ok {
		return "", "", ErrBadTemplate
	}
	return key, value, nil
}

// SelectorFilter returns the key/value filter matching this spec to
// candidate nodes, defaulting to the implicit name tag filter.
func (s *NodeSpec) SelectorFilter() (key, value string) {
	if s.Selector == "" {
		return "tags", "name:" + s.Name
	}
	if key, value, ok := strings.Cut(s.Selector, "="); ok {
		return key, value
	}
	// A bare selector token matches the name field, like a target expression.
	return "name", s.Selector
}
