package adapter

import (
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"

	"github.com/mateusmacedo/bus-booking/pkg/application"
	watermillAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/watermill/adapter"
)

type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
}

func NewKafkaPublisher(cfg Config, logger application.AppLogger) (*kafka.Publisher, error) {
	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermillAdapter.NewWatermillLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return publisher, nil
}

func NewKafkaSubscriber(cfg Config, logger application.AppLogger) (*kafka.Subscriber, error) {
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Version = sarama.V1_0_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.Brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         cfg.ConsumerGroup,
		OverwriteSaramaConfig: saramaConfig,
		InitializeTopicDetails: &sarama.TopicDetail{
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}, watermillAdapter.NewWatermillLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("kafka subscriber: %w", err)
	}
	return subscriber, nil
}
