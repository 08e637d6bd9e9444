package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNodeAbsent(t *testing.T) {
	absent := &Node{Name: "web3", InstanceType: "t3.micro", State: "running", PublicIP: "10.0.0.3"}
	assert.True(t, absent.Absent())
	assert.False(t, absent.Running(), "absent nodes hide instance-derived state")

	// Instance-derived fields read empty; resolver-assigned fields survive.
	assert.Equal(t, "", absent.Get("state"))
	assert.Equal(t, "", absent.Get("ip"))
	assert.Equal(t, "web3", absent.Get("name"))

	live := &Node{ID: "i-1", State: StateRunning}
	assert.False(t, live.Absent())
	assert.True(t, live.Running())
}

func TestNodeDisplayName(t *testing.T) {
	assert.Equal(t, "web1", (&Node{ID: "i-1", Name: "web1"}).DisplayName())
	assert.Equal(t, "i-1", (&Node{ID: "i-1"}).DisplayName())
}

func TestNodeAddrPrefersDNS(t *testing.T) {
	n := &Node{PublicDNS: "ec2-1.example.com", PublicIP: "10.0.0.1"}
	assert.Equal(t, "ec2-1.example.com", n.Addr())
	n.PublicDNS = ""
	assert.Equal(t, "10.0.0.1", n.Addr())
}

func TestNodeGetAliases(t *testing.T) {
	n := &Node{
		ID:           "i-1",
		InstanceType: "m5.large",
		PublicIP:     "10.0.0.1",
		PrivateIP:    "172.16.0.1",
		PublicDNS:    "ec2-1.example.com",
		KeyName:      "useast1_flotilla",
		LaunchTime:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "m5.large", n.Get("type"))
	assert.Equal(t, "10.0.0.1", n.Get("ip"))
	assert.Equal(t, "172.16.0.1", n.Get("int_ip"))
	assert.Equal(t, "ec2-1.example.com", n.Get("dns_name"))
	assert.Equal(t, "useast1_flotilla", n.Get("key"))
	assert.Equal(t, "2026-08-01T12:00:00Z", n.Get("launch_time"))
	assert.Equal(t, "", n.Get("no_such_field"))
}

func TestCloneIsDeep(t *testing.T) {
	n := &Node{ID: "i-1", Name: "web1", Tags: map[string]string{"cluster": "web"}}

	c := n.Clone()
	c.Name = "renamed"
	c.Tags["cluster"] = "other"

	assert.Equal(t, "web1", n.Name)
	assert.Equal(t, "web", n.Tags["cluster"])

	assert.Nil(t, CloneNodes(nil))
	cloned := CloneNodes([]*Node{n})
	assert.NotSame(t, n, cloned[0])
	assert.Equal(t, "web1", cloned[0].Name)
}

func TestRowAbsentState(t *testing.T) {
	row := (&Node{Name: "web3"}).Row()
	assert.Equal(t, "absent", row[2])
}

func TestExtendedDataSortsTags(t *testing.T) {
	n := &Node{
		ID:   "i-1",
		Tags: map[string]string{"zeta": "1", "alpha": "2", "cluster": "web"},
	}
	for _, kv := range n.ExtendedData() {
		if kv.Key == "tags" {
			assert.Equal(t, "alpha=2,cluster=web,zeta=1", kv.Value)
			return
		}
	}
	t.Fatal("tags not present in extended data")
}
