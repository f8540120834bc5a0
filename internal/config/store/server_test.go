package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/edgeagentd/internal/config/kv"
	"github.com/edgecore/edgeagentd/internal/corebus"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

func TestKVOverCorebusRoundTrip(t *testing.T) {
	table := corebus.NewAddressTable(t.TempDir())
	s := New()
	require.NoError(t, s.Write([]string{"system", "thingName"}, value.StringValue("my-thing"), 0))

	server := corebus.NewServer(corebus.AddressConfig, table, logger.NewNopLogger())
	RegisterHandlers(server, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx) }()
	waitForFile(t, server.Path())

	client, err := corebus.Dial(table, corebus.AddressConfig)
	require.NoError(t, err)
	defer client.Close()

	kvClient := kv.New(client)

	got, err := kvClient.ReadString(context.Background(), []string{"system", "thingName"})
	require.NoError(t, err)
	assert.Equal(t, "my-thing", got)

	require.NoError(t, kvClient.Write(context.Background(), []string{"system", "region"}, value.StringValue("us-east-1"), 0))

	region, err := s.ReadString([]string{"system", "region"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("file %s was never created", path)
}
