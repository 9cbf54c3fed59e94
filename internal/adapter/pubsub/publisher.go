package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/codeduel/live-delivery/config"
)

const queueSuffix = "live-delivery"

// PublisherProvider builds the export publisher: AMQP when a broker is configured,
// an in-process channel otherwise.
type PublisherProvider struct {
	cfg    config.ExportConfig
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg config.ExportConfig, logger watermill.LoggerAdapter) *PublisherProvider {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &PublisherProvider{cfg: cfg, logger: logger}
}

// Build returns the publisher and, for the in-process variant, the channel so local
// subscribers can follow the feed.
func (pp *PublisherProvider) Build() (message.Publisher, *gochannel.GoChannel, error) {
	if pp.cfg.AMQPURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, pp.logger)
		return ch, ch, nil
	}

	amqpCfg := amqp.NewDurablePubSubConfig(pp.cfg.AMQPURL, amqp.GenerateQueueNameTopicNameWithSuffix(queueSuffix))
	pub, err := amqp.NewPublisher(amqpCfg, pp.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp publisher: %w", err)
	}
	return pub, nil, nil
}
