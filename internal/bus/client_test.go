package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-reader/internal/config"
	"github.com/loqalabs/loqa-reader/internal/natsserver"
	"github.com/loqalabs/loqa-reader/internal/protocol"
)

func TestPublishRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := natsserver.Start(config.BusConfig{Enabled: true, Embedded: true, Port: -1}, logger)
	require.NoError(t, err)
	require.NotNil(t, srv)
	defer srv.Shutdown()

	client, err := Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, logger)
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Healthy())

	sub, err := client.Conn().SubscribeSync(protocol.ProgressSubject("s1"))
	require.NoError(t, err)

	require.NoError(t, client.Publish(protocol.ProgressSubject("s1"), protocol.NarrationProgress{
		SessionID: "s1",
		Index:     2,
		Completed: 3,
		Total:     5,
		Succeeded: true,
	}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got protocol.NarrationProgress
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.Equal(t, 3, got.Completed)
	require.Equal(t, 5, got.Total)
}

func TestConnectRequiresServers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Connect(context.Background(), config.BusConfig{}, logger)
	require.Error(t, err)
}

func TestStartDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := natsserver.Start(config.BusConfig{Enabled: false, Embedded: true, Port: -1}, logger)
	require.NoError(t, err)
	require.Nil(t, srv)
	srv.Shutdown()
}
