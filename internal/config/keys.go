package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/flotilla-io/flotilla/internal/adapters/file"
	"github.com/flotilla-io/flotilla/pkg/ports"
)

// DefaultKeyName returns the generated key pair name for a region, e.g.
// `useast1_flotilla` for us-east-1.
func DefaultKeyName(region string) string {
	return strings.ReplaceAll(region, "-", "") + "_flotilla"
}

// EnsureDefaultKeyPair returns the region's default key pair, creating it on
// first use. The name→file mapping is persisted in userdata so later runs
// find the key without touching the cloud.
func EnsureDefaultKeyPair(ctx context.Context, provider ports.InventoryProvider, userdata *file.UserData, keysDir string) (keyName, keyPath string, err error) {
	region := provider.Region()
	name := DefaultKeyName(region)

	mapping, err := userdata.KeyMapping()
	if err != nil {
		return "", "", fmt.Errorf("reading key mapping: %w", err)
	}
	if path, ok := mapping[region+"#"+name]; ok {
		return name, path, nil
	}

	name, path, err := provider.CreateKeyPair(ctx, name, keysDir)
	if err != nil {
		return "", "", err
	}

	mapping[region+"#"+name] = path
	if err := userdata.SetKeyMapping(mapping); err != nil {
		return "", "", fmt.Errorf("saving key mapping: %w", err)
	}
	return name, path, nil
}
