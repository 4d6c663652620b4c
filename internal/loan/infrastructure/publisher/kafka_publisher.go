// Package publisher 领域事件的 Kafka 发布实现
package publisher

import (
	"context"
	"fmt"

	"github.com/ww-care/bank-data-simulation/pkg/mq"
)

// KafkaEventPublisher 基于 Kafka 的事件发布器
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// Publish 发布事件到指定主题
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	if err := p.producer.SendMessage(ctx, topic, key, event); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// NopPublisher 空发布器，Kafka 未配置时使用
type NopPublisher struct{}

// Publish 丢弃事件
func (NopPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	return nil
}
