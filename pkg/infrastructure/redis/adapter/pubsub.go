package adapter

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/mateusmacedo/bus-booking/pkg/application"
	watermillAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/watermill/adapter"
)

func NewRedisPublisher(client redis.UniversalClient, logger application.AppLogger) (*redisstream.Publisher, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, watermillAdapter.NewWatermillLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: %w", err)
	}
	return publisher, nil
}

func NewRedisSubscriber(client redis.UniversalClient, cfg Config, logger application.AppLogger) (*redisstream.Subscriber, error) {
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: cfg.ConsumerGroup,
		Consumer:      cfg.Consumer,
	}, watermillAdapter.NewWatermillLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("redis stream subscriber: %w", err)
	}
	return subscriber, nil
}
