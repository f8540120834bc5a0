package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

type memKV struct {
	mu     sync.Mutex
	values map[string]*value.Value
}

func newMemKV() *memKV { return &memKV{values: make(map[string]*value.Value)} }

func (m *memKV) key(keyPath []string) string { return strings.Join(keyPath, "/") }

func (m *memKV) Read(_ context.Context, keyPath []string) (*value.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[m.key(keyPath)]
	if !ok {
		return nil, apierrors.ErrNoEntry
	}
	return v, nil
}

func (m *memKV) ReadString(ctx context.Context, keyPath []string) (string, error) {
	v, err := m.Read(ctx, keyPath)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (m *memKV) List(_ context.Context, _ []string) ([]string, error) { return nil, nil }

func (m *memKV) Write(_ context.Context, keyPath []string, v *value.Value, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[m.key(keyPath)] = v
	return nil
}

func (m *memKV) Delete(_ context.Context, keyPath []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, m.key(keyPath))
	return nil
}

func (m *memKV) Subscribe(_ context.Context, _ []string, _ func([]string)) (func(), error) {
	return func() {}, nil
}

type fakeProvisioner struct {
	calls    int
	identity Identity
	err      error
}

func (f *fakeProvisioner) Provision(_ context.Context, _ string) (Identity, error) {
	f.calls++
	return f.identity, f.err
}

func TestResolveReturnsExistingIdentityWithoutProvisioning(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Write(context.Background(), keyThingName, value.StringValue("myThing"), 0))
	require.NoError(t, kv.Write(context.Background(), keyRootCAPath, value.StringValue("/ca.pem"), 0))
	require.NoError(t, kv.Write(context.Background(), keyCertificatePath, value.StringValue("/cert.pem"), 0))
	require.NoError(t, kv.Write(context.Background(), keyPrivateKeyPath, value.StringValue("/key.pem"), 0))

	provisioner := &fakeProvisioner{}
	r := NewResolver(kv, provisioner, logger.NewNopLogger())

	identity, err := r.Resolve(context.Background(), "template")
	require.NoError(t, err)
	assert.Equal(t, "myThing", identity.ThingName)
	assert.Equal(t, 0, provisioner.calls)
}

func TestResolveProvisionsWhenIdentityMissing(t *testing.T) {
	kv := newMemKV()
	provisioner := &fakeProvisioner{identity: Identity{
		ThingName:       "newThing",
		RootCAPath:      "/ca.pem",
		CertificatePath: "/cert.pem",
		PrivateKeyPath:  "/key.pem",
	}}
	r := NewResolver(kv, provisioner, logger.NewNopLogger())

	identity, err := r.Resolve(context.Background(), "template")
	require.NoError(t, err)
	assert.Equal(t, "newThing", identity.ThingName)
	assert.Equal(t, 1, provisioner.calls)

	persisted, err := kv.ReadString(context.Background(), keyThingName)
	require.NoError(t, err)
	assert.Equal(t, "newThing", persisted)
}

func TestResolveFailsWithoutProvisionerWhenIdentityMissing(t *testing.T) {
	kv := newMemKV()
	r := NewResolver(kv, nil, logger.NewNopLogger())

	_, err := r.Resolve(context.Background(), "template")
	assert.Error(t, err)
}

func TestResolvePropagatesProvisionerError(t *testing.T) {
	kv := newMemKV()
	provisioner := &fakeProvisioner{err: errors.New("provisioning rejected")}
	r := NewResolver(kv, provisioner, logger.NewNopLogger())

	_, err := r.Resolve(context.Background(), "template")
	assert.Error(t, err)
}

func TestResolveRequiresAllFourFields(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Write(context.Background(), keyThingName, value.StringValue("myThing"), 0))
	// rootCaPath, certificateFilePath, privateKeyPath deliberately absent.

	provisioner := &fakeProvisioner{identity: Identity{ThingName: "provisioned"}}
	r := NewResolver(kv, provisioner, logger.NewNopLogger())

	identity, err := r.Resolve(context.Background(), "template")
	require.NoError(t, err)
	assert.Equal(t, "provisioned", identity.ThingName)
	assert.Equal(t, 1, provisioner.calls)
}
