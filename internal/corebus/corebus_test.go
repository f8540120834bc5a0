package corebus

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

func newTestTable(t *testing.T) *AddressTable {
	dir := t.TempDir()
	return NewAddressTable(dir)
}

func startTestServer(t *testing.T, table *AddressTable) *Server {
	s := NewServer(AddressConfig, table, logger.NewNopLogger())
	s.Register("Echo", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req map[string]string
		_ = json.Unmarshal(params, &req)
		return map[string]string{"echo": req["text"]}, nil
	})
	s.Register("Fail", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, apierrors.WrapKind(apierrors.New("boom"), apierrors.ErrNoEntry, "fail handler")
	})
	s.RegisterSubscription("Watch", func(ctx context.Context, params json.RawMessage, stream *Stream) error {
		go func() {
			_ = stream.PushEvent(map[string]string{"event": "one"})
			_ = stream.PushEvent(map[string]string{"event": "two"})
		}()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Serve(ctx) }()
	t.Cleanup(cancel)

	waitForSocket(t, s.Path())
	return s
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s was never created", path)
}

func TestClientCallRoundTrip(t *testing.T) {
	table := newTestTable(t)
	startTestServer(t, table)

	client, err := Dial(table, AddressConfig)
	require.NoError(t, err)
	defer client.Close()

	var result map[string]string
	err = client.Call(context.Background(), "Echo", map[string]string{"text": "hello"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "hello", result["echo"])
}

func TestClientCallUnknownMethodFails(t *testing.T) {
	table := newTestTable(t)
	startTestServer(t, table)

	client, err := Dial(table, AddressConfig)
	require.NoError(t, err)
	defer client.Close()

	err = client.Call(context.Background(), "NoSuchMethod", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrRemote)
}

func TestClientCallHandlerError(t *testing.T) {
	table := newTestTable(t)
	startTestServer(t, table)

	client, err := Dial(table, AddressConfig)
	require.NoError(t, err)
	defer client.Close()

	err = client.Call(context.Background(), "Fail", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrRemote)
}

func TestClientSubscribeReceivesEvents(t *testing.T) {
	table := newTestTable(t)
	startTestServer(t, table)

	client, err := Dial(table, AddressConfig)
	require.NoError(t, err)
	defer client.Close()

	events := make(chan json.RawMessage, 8)
	unsub, err := client.Subscribe("Watch", nil, func(payload json.RawMessage) {
		events <- payload
	}, func() {})
	require.NoError(t, err)
	defer unsub()

	var got []map[string]string
	for i := 0; i < 2; i++ {
		select {
		case payload := <-events:
			var m map[string]string
			require.NoError(t, json.Unmarshal(payload, &m))
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscription event")
		}
	}
	assert.Equal(t, "one", got[0]["event"])
	assert.Equal(t, "two", got[1]["event"])
}

func TestAddressTableResolvePath(t *testing.T) {
	table := NewAddressTable("/run/greengrass")
	assert.Equal(t, filepath.Join("/run/greengrass", "gg_config.socket"), table.Resolve(AddressConfig))
}
