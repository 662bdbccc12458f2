// Package events 是进程内的交互事件总线（watermill gochannel）。
//
// RecordInteraction 写入的每条交互都会发布到 TopicInteractionRecorded，
// 订阅方（例如按交互量触发重训的调度器）不与服务直接耦合。
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/hybridrec/core"
)

// TopicInteractionRecorded 是交互写入事件的主题。
const TopicInteractionRecorded = "interactions.recorded"

// InteractionRecorded 是事件负载。
type InteractionRecorded struct {
	Interaction core.Interaction `json:"interaction"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// Bus 是基于 gochannel 的事件总线，没有订阅者时事件被丢弃。
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus 创建总线，buffer 是每个订阅者的输出缓冲。
func NewBus(buffer int64, logger zerolog.Logger) *Bus {
	logger = logger.With().Str("component", "events").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: buffer},
			NewLoggerAdapter(logger),
		),
		logger: logger,
	}
}

// PublishInteraction 发布一条交互事件。
func (b *Bus) PublishInteraction(ctx context.Context, it core.Interaction) error {
	payload, err := json.Marshal(InteractionRecorded{Interaction: it, RecordedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("events: encode interaction: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("user_id", it.UserID)
	msg.Metadata.Set("type", string(it.Type))
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(TopicInteractionRecorded, msg); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	return nil
}

// SubscribeInteractions 订阅交互事件，ctx 结束或总线关闭时输出通道关闭。
// 无法解码的消息会被确认并丢弃。
func (b *Bus) SubscribeInteractions(ctx context.Context) (<-chan InteractionRecorded, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicInteractionRecorded)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe: %w", err)
	}
	out := make(chan InteractionRecorded)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev InteractionRecorded
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("drop undecodable event")
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭总线及所有订阅。
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
