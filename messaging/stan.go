package mqclients

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/stan.go"
)

func init() {
	MQClients = append(MQClients, "stan")
}

type StanMQClient struct {
	NatsClient *nats.Conn `json:"-"`
	StanClient stan.Conn  `json:"-"`

	async bool

	channel string
	cluster string
}

func (stanMQ *StanMQClient) String() string {
	return "stan"
}

func (stanMQ *StanMQClient) Channel() string {
	return stanMQ.channel
}

func (stanMQ *StanMQClient) Connect(ctx context.Context, clientName string, args map[string]interface{}) (err error) {
	address := GetString(args, "Address", "")
	if address == "" {
		return errors.New("stanMQ connect: missing Address")
	}

	stanMQ.cluster = GetString(args, "Cluster", "")
	if stanMQ.cluster == "" {
		return errors.New("stanMQ connect: missing Cluster")
	}

	stanMQ.channel = GetString(args, "Channel", "")
	stanMQ.async, _ = strconv.ParseBool(GetString(args, "Async", "false"))

	stanMQ.NatsClient, err = nats.Connect(address)
	if err != nil {
		return fmt.Errorf("stanMQ connect nats: %w", err)
	}

	stanMQ.StanClient, err = stan.Connect(
		stanMQ.cluster,
		clientName,
		stan.NatsConn(stanMQ.NatsClient),
	)
	if err != nil {
		stanMQ.NatsClient.Close()

		return fmt.Errorf("stanMQ connect stan: %w", err)
	}

	return nil
}

func (stanMQ *StanMQClient) Publish(ctx context.Context, channelName string, data []byte) (err error) {
	if stanMQ.async {
		_, err = stanMQ.StanClient.PublishAsync(
			channelName,
			data,
			nil,
		)

		return
	}

	return stanMQ.StanClient.Publish(
		channelName,
		data,
	)
}

func (stanMQ *StanMQClient) Close() error {
	var err error

	if stanMQ.StanClient != nil {
		err = stanMQ.StanClient.Close()
	}

	if stanMQ.NatsClient != nil {
		stanMQ.NatsClient.Close()
	}

	return err
}
