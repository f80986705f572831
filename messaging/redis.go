package mqclients

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

func init() {
	MQClients = append(MQClients, "redis")
}

type RedisMQClient struct {
	redisClient *redis.Client

	channel string
}

func (redisMQ *RedisMQClient) String() string {
	return "redis"
}

func (redisMQ *RedisMQClient) Channel() string {
	return redisMQ.channel
}

func (redisMQ *RedisMQClient) Connect(ctx context.Context, clientName string, args map[string]interface{}) error {
	address := GetString(args, "Address", "")
	if address == "" {
		return errors.New("redisMQ connect: missing Address")
	}

	db, err := strconv.Atoi(GetString(args, "DB", "0"))
	if err != nil {
		return fmt.Errorf("redisMQ connect db atoi: %w", err)
	}

	redisMQ.channel = GetString(args, "Channel", "")

	redisMQ.redisClient = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: GetString(args, "Password", ""),
		DB:       db,
	})

	if err = redisMQ.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisMQ connect ping: %w", err)
	}

	return nil
}

func (redisMQ *RedisMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	return redisMQ.redisClient.Publish(
		ctx,
		channelName,
		data,
	).Err()
}

func (redisMQ *RedisMQClient) Close() error {
	if redisMQ.redisClient == nil {
		return nil
	}

	err := redisMQ.redisClient.Close()
	redisMQ.redisClient = nil

	return err
}
