package adapter

import (
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/mateusmacedo/bus-booking/pkg/application"
	watermillAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/watermill/adapter"
)

// NewGoChannelPubSub returns an in-memory publisher/subscriber pair. Messages
// are not persisted: publishing to a topic nobody subscribed to drops them.
func NewGoChannelPubSub(logger application.AppLogger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillAdapter.NewWatermillLoggerAdapter(logger),
	)
}
