package mqclients

import (
	"context"
	"fmt"
	"strings"
)

// MQClient publishes encoded events to a message queue.
type MQClient interface {
	String() string
	Channel() string

	Connect(ctx context.Context, clientName string, args map[string]interface{}) error
	Publish(ctx context.Context, channelName string, data []byte) error
	Close() error
}

// MQClients lists all current mqclients we have available.
var MQClients = []string{}

// NewMQClient returns an unconnected client for the given type.
func NewMQClient(mqType string) (MQClient, error) {
	switch strings.ToLower(mqType) {
	case "stan":
		return &StanMQClient{}, nil
	case "kafka":
		return &KafkaMQClient{}, nil
	case "jetstream":
		return &JetStreamMQClient{}, nil
	case "redis":
		return &RedisMQClient{}, nil
	default:
		return nil, fmt.Errorf("no mq client named %q, available: %s", mqType, strings.Join(MQClients, ", "))
	}
}

// GetEntry returns first match from a map and handles keys as non case sensitive.
func GetEntry(m map[string]interface{}, key string) interface{} {
	key = strings.ToLower(key)
	for i, k := range m {
		if strings.ToLower(i) == key {
			return k
		}
	}

	return nil
}

// GetString returns the entry for key formatted as a string, or
// fallback if it is missing. YAML may decode scalars as numbers or booleans.
func GetString(m map[string]interface{}, key string, fallback string) string {
	switch v := GetEntry(m, key).(type) {
	case nil:
		return fallback
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
