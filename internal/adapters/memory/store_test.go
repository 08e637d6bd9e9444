package memory_test

import (
	"testing"

	"github.com/flotilla-io/flotilla/internal/adapters/memory"
	"github.com/flotilla-io/flotilla/pkg/ports"
)

// Ensure Store implements CacheStore
var _ ports.CacheStore = (*memory.Store)(nil)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunCacheStoreContract(t, memory.New())
}
