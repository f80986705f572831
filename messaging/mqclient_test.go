package mqclients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMQClient(t *testing.T) {
	for _, name := range []string{"kafka", "stan", "jetstream", "redis", "Kafka"} {
		client, err := NewMQClient(name)
		require.NoError(t, err, name)
		assert.NotNil(t, client)
	}

	_, err := NewMQClient("carrier-pigeon")
	assert.Error(t, err)
}

func TestGetString(t *testing.T) {
	args := map[string]interface{}{
		"address": "localhost:4222",
		"DB":      3,
		"Async":   true,
	}

	assert.Equal(t, "localhost:4222", GetString(args, "Address", ""))
	assert.Equal(t, "3", GetString(args, "db", "0"))
	assert.Equal(t, "true", GetString(args, "async", "false"))
	assert.Equal(t, "fallback", GetString(args, "channel", "fallback"))
}

func TestConnectMissingAddress(t *testing.T) {
	for _, name := range []string{"kafka", "stan", "jetstream", "redis"} {
		client, err := NewMQClient(name)
		require.NoError(t, err)

		err = client.Connect(context.Background(), "test", map[string]interface{}{})
		assert.Error(t, err, name)
	}
}

func TestMQClientsRegistered(t *testing.T) {
	assert.ElementsMatch(t, []string{"kafka", "stan", "jetstream", "redis"}, MQClients)
}
