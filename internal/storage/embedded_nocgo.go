//go:build !cgo

package storage

import (
	"context"
	"fmt"
)

func openEmbedded(_ context.Context, _ *Config) (*DB, error) {
	return nil, fmt.Errorf("%s requires a cgo build; use dolt-server with a running dolt sql-server instead", BackendDoltEmbedded)
}
