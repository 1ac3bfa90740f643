package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopify_sync_v1/pkg/queue"
)

// ==================== ListingWorker 刊登同步消费者 ====================

// JobRunner 执行一个刊登同步任务
type JobRunner interface {
	RunJob(ctx context.Context, job queue.Job) error
}

const (
	DefaultJobDeadline = 15 * time.Minute
	consumeRetryDelay  = time.Second
)

// ListingWorker 多个 goroutine 消费队列，每个任务有独立的超时
type ListingWorker struct {
	queue    queue.Queue
	runner   JobRunner
	workers  int
	deadline time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	active int
}

func NewListingWorker(q queue.Queue, runner JobRunner, workers int, deadline time.Duration, logger *zap.Logger) *ListingWorker {
	if workers <= 0 {
		workers = 1
	}
	if deadline <= 0 {
		deadline = DefaultJobDeadline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingWorker{
		queue:    q,
		runner:   runner,
		workers:  workers,
		deadline: deadline,
		logger:   logger.Named("ListingWorker"),
	}
}

// Run 阻塞直到 ctx 取消或队列关闭
func (w *ListingWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		id := i
		g.Go(func() error {
			return w.loop(ctx, id)
		})
	}
	w.logger.Info("刊登同步消费者已启动", zap.Int("workers", w.workers), zap.Duration("deadline", w.deadline))
	err := g.Wait()
	w.logger.Info("刊登同步消费者已退出")
	return err
}

// Start 后台运行，配合 Stop 使用
func (w *ListingWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			w.logger.Error("消费者异常退出", zap.Error(err))
		}
	}(w.done)
}

// Stop 停止领取新任务并等待进行中的任务结束
func (w *ListingWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *ListingWorker) loop(ctx context.Context, id int) error {
	for {
		d, err := w.queue.Consume(ctx)
		switch {
		case errors.Is(err, queue.ErrClosed):
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			w.logger.Warn("领取任务失败", zap.Int("worker", id), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(consumeRetryDelay):
			}
			continue
		}
		w.handle(ctx, id, d)
	}
}

// handle 任务结束后才确认，进程退出中断的任务不确认，由队列重新投递
func (w *ListingWorker) handle(ctx context.Context, id int, d *queue.Delivery) {
	w.setActive(1)
	defer w.setActive(-1)

	jobCtx, cancel := context.WithTimeout(ctx, w.deadline)
	err := w.runner.RunJob(jobCtx, d.Job)
	cancel()

	logger := w.logger.With(
		zap.Int("worker", id),
		zap.String("job_id", d.Job.ID),
		zap.Int64("listing_id", d.Job.ListingID),
		zap.Int64("update_id", d.Job.UpdateID))
	if err != nil {
		logger.Warn("刊登同步失败", zap.Error(err))
	} else {
		logger.Info("刊登同步完成")
	}

	if ctx.Err() != nil {
		logger.Info("正在退出，任务不确认")
		return
	}
	if err := w.queue.Ack(ctx, d); err != nil {
		logger.Error("确认任务失败", zap.Error(err))
	}
}

func (w *ListingWorker) setActive(delta int) {
	w.mu.Lock()
	w.active += delta
	w.mu.Unlock()
}

// Active 正在执行的任务数
func (w *ListingWorker) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Running 是否已启动
func (w *ListingWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}
