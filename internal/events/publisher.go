package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"github.com/IBM/sarama"
)

// TypeOperationRecorded 操作记入事件类型
const TypeOperationRecorded = "operation.recorded"

// OperationRecorded 发布到 Kafka 的事件内容
type OperationRecorded struct {
	Type       string            `json:"type"`
	Account    string            `json:"account"`
	Operation  *models.Operation `json:"operation"`
	Balance    int64             `json:"balance"`
	Version    int64             `json:"version"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Config Kafka 生产者配置
type Config struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher 基于 sarama SyncProducer 的事件发布器
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher 连接 Kafka 并创建同步生产者
func NewKafkaPublisher(cfg Config) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

// NewKafkaPublisherWithProducer 使用已有生产者创建发布器（测试可注入 mocks）
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishOperationRecorded 发布操作记入事件，消息 key 为账户名以保证同账户有序
func (p *KafkaPublisher) PublishOperationRecorded(ctx context.Context, account *models.Account, op *models.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(OperationRecorded{
		Type:       TypeOperationRecorded,
		Account:    account.Name,
		Operation:  op,
		Balance:    account.Balance,
		Version:    account.Version,
		OccurredAt: op.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(account.Name),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send event to %s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
