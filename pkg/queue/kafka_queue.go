package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaQueue 消费组模式，Ack 时提交 offset
// 同一刊登的任务按 key 落在同一分区，保持顺序
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *zap.Logger
}

func NewKafkaQueue(cfg KafkaConfig, logger *zap.Logger) *KafkaQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	return &KafkaQueue{
		writer: writer,
		reader: reader,
		logger: logger.Named("KafkaQueue"),
	}
}

func (q *KafkaQueue) Publish(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(job.ListingID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("发送 kafka 消息失败: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Consume(ctx context.Context) (*Delivery, error) {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}
		job, err := decodeJob(msg.Value)
		if err != nil {
			// 无法解析的消息直接提交，避免阻塞分区
			q.logger.Error("丢弃无法解析的消息", zap.Int64("offset", msg.Offset), zap.Error(err))
			if cerr := q.reader.CommitMessages(ctx, msg); cerr != nil {
				return nil, fmt.Errorf("提交 offset 失败: %w", cerr)
			}
			continue
		}
		return &Delivery{Job: job, ref: msg}, nil
	}
}

func (q *KafkaQueue) Ack(ctx context.Context, d *Delivery) error {
	msg, ok := d.ref.(kafka.Message)
	if !ok {
		return fmt.Errorf("无效的投递引用: %T", d.ref)
	}
	if err := q.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("提交 offset 失败: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func decodeJob(value []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		return Job{}, err
	}
	if job.ListingID == 0 || job.UpdateID == 0 {
		return Job{}, fmt.Errorf("任务缺少 listing_id 或 update_id")
	}
	return job, nil
}
