package ipc

import (
	"context"

	"github.com/edgecore/edgeagentd/internal/config/store"
	"github.com/edgecore/edgeagentd/internal/value"
)

// directStoreClient adapts a store.Store directly to kv.Client for tests,
// skipping the real corebus round trip (already exercised by
// internal/config/store's own server_test.go).
type directStoreClient struct {
	s *store.Store
}

func (d directStoreClient) Read(ctx context.Context, keyPath []string) (*value.Value, error) {
	return d.s.Read(keyPath)
}

func (d directStoreClient) ReadString(ctx context.Context, keyPath []string) (string, error) {
	return d.s.ReadString(keyPath)
}

func (d directStoreClient) List(ctx context.Context, keyPath []string) ([]string, error) {
	return d.s.List(keyPath)
}

func (d directStoreClient) Write(ctx context.Context, keyPath []string, v *value.Value, timestamp float64) error {
	return d.s.Write(keyPath, v, timestamp)
}

func (d directStoreClient) Delete(ctx context.Context, keyPath []string) error {
	return d.s.Delete(keyPath)
}

func (d directStoreClient) Subscribe(ctx context.Context, keyPath []string, onChange func(keyPath []string)) (func(), error) {
	return d.s.Subscribe(keyPath, onChange)
}
