package main

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/config"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
	pkgInfra "github.com/mateusmacedo/bus-booking/pkg/infrastructure"
	amqpAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/amqp/adapter"
	channelsAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/channels/adapter"
	kafkaAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/kafka/adapter"
	redisAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/redis/adapter"
	watermillAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/watermill/adapter"
)

// transport holds the buses that carry payment results and booking events,
// plus whatever has to be closed on shutdown.
type transport struct {
	commandBus application.CommandBus
	eventBus   application.EventBus
	closers    []func() error
}

func (t *transport) Close() error {
	var firstErr error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *transport) onClose(c io.Closer) {
	t.closers = append(t.closers, c.Close)
}

// newTransport builds the command and event buses for cfg.Transport. Brokers
// carry both unless only a publisher exists for them, as with AMQP, where
// payment results stay in-process.
func newTransport(cfg config.Config, logger pkgApp.AppLogger) (*transport, error) {
	t := &transport{}
	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)

	switch cfg.Transport {
	case config.TransportInProcess:
		t.commandBus = pkgInfra.NewSimpleCommandBus[pkgDomain.Command[application.PaymentResultData], application.PaymentResultData](logger)
		t.eventBus = pkgInfra.NewSimpleEventBus[pkgDomain.Event[application.BookingEvent], application.BookingEvent](logger)
		return t, nil

	case config.TransportGoChannel:
		pubSub := channelsAdapter.NewGoChannelPubSub(logger)
		t.onClose(pubSub)
		publisher, subscriber = pubSub, pubSub

	case config.TransportKafka:
		kafkaCfg := kafkaAdapter.Config{
			Brokers:       cfg.KafkaBrokers,
			ConsumerGroup: cfg.KafkaConsumerGroup,
			ClientID:      cfg.AppName,
		}
		pub, err := kafkaAdapter.NewKafkaPublisher(kafkaCfg, logger)
		if err != nil {
			return nil, err
		}
		t.onClose(pub)
		sub, err := kafkaAdapter.NewKafkaSubscriber(kafkaCfg, logger)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.onClose(sub)
		publisher, subscriber = pub, sub

	case config.TransportRedis:
		redisCfg := redisAdapter.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			ConsumerGroup: cfg.RedisConsumerGroup,
			Consumer:      cfg.RedisConsumer,
		}
		client := redisAdapter.NewRedisClient(redisCfg)
		t.onClose(client)
		pub, err := redisAdapter.NewRedisPublisher(client, logger)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.onClose(pub)
		sub, err := redisAdapter.NewRedisSubscriber(client, redisCfg, logger)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.onClose(sub)
		publisher, subscriber = pub, sub

	case config.TransportAMQP:
		pub, err := amqpAdapter.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		t.onClose(pub)
		t.commandBus = pkgInfra.NewSimpleCommandBus[pkgDomain.Command[application.PaymentResultData], application.PaymentResultData](logger)
		t.eventBus = watermillAdapter.NewWatermillEventBus[pkgDomain.Event[application.BookingEvent], application.BookingEvent](pub, logger)
		return t, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	commandBus := watermillAdapter.NewWatermillCommandBus[pkgDomain.Command[application.PaymentResultData], application.PaymentResultData](publisher, subscriber, logger)
	commandBus.SetHandlerTimeout(cfg.RequestTimeout)
	// Stop consuming before the broker connections go away.
	t.closers = append(t.closers, func() error {
		commandBus.Close()
		return nil
	})
	t.commandBus = commandBus
	t.eventBus = watermillAdapter.NewWatermillEventBus[pkgDomain.Event[application.BookingEvent], application.BookingEvent](publisher, logger)
	return t, nil
}
