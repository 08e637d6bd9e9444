// Package ports defines the driven-side interfaces of the flotilla engine:
// the cloud inventory provider, the cluster template store, and the regional
// inventory cache. Adapters under internal/adapters implement them.
package ports
