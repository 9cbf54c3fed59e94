package pubsub

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/codeduel/live-delivery/config"
)

var ErrNoLocalChannel = errors.New("pubsub: no in-process channel to subscribe to")

// SubscriberProvider builds subscribers for the export feed. Without a broker the feed
// only exists inside this process, on the channel returned by PublisherProvider.Build.
type SubscriberProvider struct {
	cfg    config.ExportConfig
	logger watermill.LoggerAdapter
	local  *gochannel.GoChannel
}

func NewSubscriberProvider(cfg config.ExportConfig, logger watermill.LoggerAdapter, local *gochannel.GoChannel) *SubscriberProvider {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &SubscriberProvider{cfg: cfg, logger: logger, local: local}
}

// Build returns a subscriber whose durable queue name ends with consumer.
func (sp *SubscriberProvider) Build(consumer string) (message.Subscriber, error) {
	if sp.cfg.AMQPURL == "" {
		if sp.local == nil {
			return nil, ErrNoLocalChannel
		}
		return sp.local, nil
	}

	amqpCfg := amqp.NewDurablePubSubConfig(sp.cfg.AMQPURL, amqp.GenerateQueueNameTopicNameWithSuffix(consumer))
	sub, err := amqp.NewSubscriber(amqpCfg, sp.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber: %w", err)
	}
	return sub, nil
}
