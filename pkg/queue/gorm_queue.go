package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 任务状态
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
)

// SyncJob 数据库队列表
type SyncJob struct {
	Seq         int64      `gorm:"primaryKey;autoIncrement"`
	JobID       string     `gorm:"size:36;uniqueIndex;not null"`
	ListingID   int64      `gorm:"uniqueIndex:idx_sync_job_key;not null"`
	UpdateID    int64      `gorm:"uniqueIndex:idx_sync_job_key;not null"`
	Status      string     `gorm:"size:20;index;not null"`
	Attempts    int        `gorm:"default:0"`
	AvailableAt time.Time  `gorm:"index"`
	LockedAt    *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

// Models 队列需要迁移的表
func Models() []interface{} {
	return []interface{}{&SyncJob{}}
}

// GormQueue 基于数据库表的队列
// 取出的任务在 lease 内未确认会被重新投递
type GormQueue struct {
	db           *gorm.DB
	pollInterval time.Duration
	lease        time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewGormQueue(db *gorm.DB, pollInterval, lease time.Duration, logger *zap.Logger) *GormQueue {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if lease <= 0 {
		lease = 20 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormQueue{
		db:           db,
		pollInterval: pollInterval,
		lease:        lease,
		logger:       logger.Named("GormQueue"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Publish 同一 (listing, update) 重复发布只保留一条
func (q *GormQueue) Publish(ctx context.Context, job Job) error {
	if q.isClosed() {
		return ErrClosed
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	row := &SyncJob{
		JobID:       job.ID,
		ListingID:   job.ListingID,
		UpdateID:    job.UpdateID,
		Status:      StatusPending,
		AvailableAt: q.now(),
	}
	err := q.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}, {Name: "update_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("写入队列失败: %w", err)
	}
	return nil
}

func (q *GormQueue) Consume(ctx context.Context) (*Delivery, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		if q.isClosed() {
			return nil, ErrClosed
		}
		d, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// claim 乐观锁领取最早的可用任务，没有时返回 nil
func (q *GormQueue) claim(ctx context.Context) (*Delivery, error) {
	for {
		now := q.now()
		expired := now.Add(-q.lease)

		var row SyncJob
		err := q.db.WithContext(ctx).
			Where("(status = ? AND available_at <= ?) OR (status = ? AND locked_at < ?)",
				StatusPending, now, StatusRunning, expired).
			Order("seq ASC").
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("读取队列失败: %w", err)
		}

		res := q.db.WithContext(ctx).Model(&SyncJob{}).
			Where("seq = ? AND status = ? AND attempts = ?", row.Seq, row.Status, row.Attempts).
			Updates(map[string]interface{}{
				"status":    StatusRunning,
				"attempts":  row.Attempts + 1,
				"locked_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("领取任务失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// 被其他 worker 抢先
			continue
		}

		if row.Status == StatusRunning {
			q.logger.Warn("任务租约过期，重新投递",
				zap.String("job_id", row.JobID),
				zap.Int64("listing_id", row.ListingID))
		}
		return &Delivery{
			Job: Job{
				ID:        row.JobID,
				ListingID: row.ListingID,
				UpdateID:  row.UpdateID,
				Attempts:  row.Attempts + 1,
			},
			ref: row.Seq,
		}, nil
	}
}

func (q *GormQueue) Ack(ctx context.Context, d *Delivery) error {
	seq, ok := d.ref.(int64)
	if !ok {
		return fmt.Errorf("无效的投递引用: %v", d.ref)
	}
	err := q.db.WithContext(ctx).Model(&SyncJob{}).
		Where("seq = ?", seq).
		Updates(map[string]interface{}{"status": StatusDone, "locked_at": nil, "updated_at": q.now()}).Error
	if err != nil {
		return fmt.Errorf("确认任务失败: %w", err)
	}
	return nil
}

// PurgeDone 删除 before 之前已确认的任务，返回删除条数
func (q *GormQueue) PurgeDone(ctx context.Context, before time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusDone, before).
		Delete(&SyncJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("清理已完成任务失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (q *GormQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

func (q *GormQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
