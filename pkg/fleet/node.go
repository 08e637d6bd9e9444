package fleet

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Node is one addressable remote compute target, live or absent.
//
// ID is the cloud instance ID, or empty for an absent placeholder. Name,
// Cluster, Username and KeyFile are assigned by the resolver once per
// resolution pass; the remaining fields are read-only snapshots taken at
// inventory refresh time.
type Node struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	Cluster      string            `json:"cluster,omitempty"`
	InstanceType string            `json:"instance_type,omitempty"`
	Image        string            `json:"image,omitempty"`
	State        string            `json:"state,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	KeyName      string            `json:"key_name,omitempty"`
	Username     string            `json:"username,omitempty"`
	KeyFile      string            `json:"key_file,omitempty"`
	PublicIP     string            `json:"public_ip,omitempty"`
	PrivateIP    string            `json:"private_ip,omitempty"`
	PublicDNS    string            `json:"public_dns,omitempty"`
	VPC          string            `json:"vpc,omitempty"`
	LaunchTime   time.Time         `json:"launch_time,omitempty"`
}

// StateRunning is the lifecycle state remote operations require.
const StateRunning = "running"

// friendlyFields maps short filter keys to canonical field names.
var friendlyFields = map[string]string{
	"ip":       "public_ip",
	"int_ip":   "private_ip",
	"dns_name": "public_dns",
	"type":     "instance_type",
	"key":      "key_name",
	"vpc":      "vpc",
	"image":    "image",
}

// Clone returns a deep copy of the node. Resolution assigns Name, Cluster
// and the credential overrides in place, so shared snapshots hand out copies.
func (n *Node) Clone() *Node {
	out := *n
	if n.Tags != nil {
		out.Tags = make(map[string]string, len(n.Tags))
		for k, v := range n.Tags {
			out.Tags[k] = v
		}
	}
	return &out
}

// CloneNodes deep-copies a node list. A nil list stays nil.
func CloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Absent reports whether the node is a placeholder with no backing instance.
func (n *Node) Absent() bool {
	return n.ID == ""
}

// Running reports whether the backing instance is in the running state.
func (n *Node) Running() bool {
	return n.State == StateRunning
}

// Addr returns the address a session should dial: public DNS if present,
// otherwise the public IP.
func (n *Node) Addr() string {
	if n.PublicDNS != "" {
		return n.PublicDNS
	}
	return n.PublicIP
}

// DisplayName returns the resolver-assigned name, falling back to the
// instance ID for unnamed discoveries.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Get returns the named field as a string for filter matching. Friendly
// aliases (ip, type, key, dns_name...) are accepted. Absent nodes return ""
// for every instance-derived field.
func (n *Node) Get(field string) string {
	if alias, ok := friendlyFields[field]; ok {
		field = alias
	}

	switch field {
	case "name":
		return n.Name
	case "cluster":
		return n.Cluster
	case "username":
		return n.Username
	case "key_file":
		return n.KeyFile
	}

	if n.Absent() {
		return ""
	}

	switch field {
	case "id":
		return n.ID
	case "state":
		return n.State
	case "instance_type":
		return n.InstanceType
	case "image":
		return n.Image
	case "public_ip":
		return n.PublicIP
	case "private_ip":
		return n.PrivateIP
	case "public_dns":
		return n.PublicDNS
	case "vpc":
		return n.VPC
	case "key_name":
		return n.KeyName
	case "launch_time":
		if n.LaunchTime.IsZero() {
			return ""
		}
		return n.LaunchTime.Format(time.RFC3339)
	}
	return ""
}

// Headers returns the column titles for the node summary table.
func Headers() []string {
	return []string{"Name", "Type", "State", "ID", "IP", "int_IP"}
}

// Row returns the node's summary table cells, aligned with Headers.
// Absent nodes report the synthetic state "absent".
func (n *Node) Row() []string {
	if n.Absent() {
		return []string{n.Name, n.InstanceType, "absent", "", "", ""}
	}
	return []string{n.DisplayName(), n.InstanceType, n.State, n.ID, n.PublicIP, n.PrivateIP}
}

// ExtendedData returns the secondary fields shown by the verbose node view,
// skipping empty values.
func (n *Node) ExtendedData() []KV {
	var out []KV
	add := func(k, v string) {
		if v != "" {
			out = append(out, KV{k, v})
		}
	}
	add("dns_name", n.PublicDNS)
	add("image", n.Image)
	if len(n.Tags) > 0 {
		keys := make([]string, 0, len(n.Tags))
		for k := range n.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, n.Tags[k]))
		}
		add("tags", strings.Join(pairs, ","))
	}
	add("key", n.KeyName)
	add("vpc", n.VPC)
	if !n.LaunchTime.IsZero() {
		add("launch_time", n.LaunchTime.Format(time.RFC3339))
	}
	return out
}

// KV is a display key/value pair.
type KV struct {
	Key   string
	Value string
}
