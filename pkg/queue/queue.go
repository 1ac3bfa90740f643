package queue

import (
	"context"
	"errors"
)

// Job 刊登同步任务，(ListingID, UpdateID) 唯一标识一次投递
type Job struct {
	ID        string `json:"id"`
	ListingID int64  `json:"listing_id"`
	UpdateID  int64  `json:"update_id"`
	Attempts  int    `json:"attempts"`
}

// Delivery 一次取出的任务，处理完后交给 Ack
type Delivery struct {
	Job Job
	ref interface{}
}

// Queue 持久化 FIFO 队列，至少一次投递
type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Consume 阻塞直到取到任务或 ctx 结束
	Consume(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Close() error
}

var ErrClosed = errors.New("queue closed")
