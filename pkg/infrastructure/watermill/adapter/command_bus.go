package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mateusmacedo/bus-booking/pkg/application"
	"github.com/mateusmacedo/bus-booking/pkg/domain"
)

// WatermillCommandBus sends commands through a watermill publisher and
// consumes them from the matching subscriber topic. Dispatch returns once the
// message is published; handling is asynchronous.
type WatermillCommandBus[C domain.Command[T], T any] struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   map[string]application.CommandHandler[C, T]
	mu         sync.RWMutex
	logger     application.AppLogger
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatermillCommandBus[C domain.Command[T], T any](publisher message.Publisher, subscriber message.Subscriber, logger application.AppLogger) *WatermillCommandBus[C, T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &WatermillCommandBus[C, T]{
		publisher:  publisher,
		subscriber: subscriber,
		handlers:   make(map[string]application.CommandHandler[C, T]),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetHandlerTimeout bounds each delivered command; messages arrive with a
// context that has no deadline of its own. Zero leaves handlers unbounded.
func (bus *WatermillCommandBus[C, T]) SetHandlerTimeout(timeout time.Duration) {
	bus.mu.Lock()
	bus.timeout = timeout
	bus.mu.Unlock()
}

func (bus *WatermillCommandBus[C, T]) RegisterHandler(commandName string, handler application.CommandHandler[C, T]) {
	bus.mu.Lock()
	bus.handlers[commandName] = handler
	bus.mu.Unlock()

	messages, err := bus.subscriber.Subscribe(bus.ctx, commandName)
	if err != nil {
		application.LogError(bus.ctx, bus.logger, "error subscribing to command", err, map[string]interface{}{
			"command_name": commandName,
		})
		return
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for msg := range messages {
			bus.handleMessage(commandName, handler, msg)
		}
	}()
}

func (bus *WatermillCommandBus[C, T]) handleMessage(commandName string, handler application.CommandHandler[C, T], msg *message.Message) {
	ctx := msg.Context()

	payload, err := application.UnmarshalPayload[T](msg.Payload)
	if err != nil {
		// A payload that cannot be decoded never will be; drop it.
		application.LogError(ctx, bus.logger, "error unmarshalling command payload", err, map[string]interface{}{
			"command_name": commandName,
			"message_id":   msg.UUID,
		})
		msg.Ack()
		return
	}

	typedCommand, ok := domain.NewCommand(commandName, payload).(C)
	if !ok {
		application.LogError(ctx, bus.logger, "error asserting command type", nil, map[string]interface{}{
			"command_name": commandName,
		})
		msg.Ack()
		return
	}

	if err := bus.handle(ctx, handler, typedCommand); err != nil {
		application.LogError(ctx, bus.logger, "error handling command", err, map[string]interface{}{
			"command_name": commandName,
			"message_id":   msg.UUID,
		})
		msg.Nack()
		return
	}

	application.LogDebug(ctx, bus.logger, "command handled", map[string]interface{}{
		"command_name": commandName,
		"message_id":   msg.UUID,
	})
	msg.Ack()
}

func (bus *WatermillCommandBus[C, T]) handle(ctx context.Context, handler application.CommandHandler[C, T], command C) error {
	bus.mu.RLock()
	timeout := bus.timeout
	bus.mu.RUnlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return handler.Handle(ctx, command)
}

func (bus *WatermillCommandBus[C, T]) Dispatch(ctx context.Context, command C) error {
	payload, err := application.MarshalPayload(command.Payload())
	if err != nil {
		application.LogError(ctx, bus.logger, "error marshalling command payload", err, map[string]interface{}{
			"command_name": command.CommandName(),
		})
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := bus.publisher.Publish(command.CommandName(), msg); err != nil {
		application.LogError(ctx, bus.logger, "error publishing command", err, map[string]interface{}{
			"command_name": command.CommandName(),
		})
		return err
	}

	application.LogDebug(ctx, bus.logger, "command dispatched", map[string]interface{}{
		"command_name": command.CommandName(),
		"message_id":   msg.UUID,
	})
	return nil
}

// Close stops every subscription and waits for in-flight handlers.
func (bus *WatermillCommandBus[C, T]) Close() {
	bus.cancel()
	bus.wg.Wait()
}
