package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/service"
)

// ==================== 依赖接口 ====================

type StockReconciler interface {
	Reconcile(ctx context.Context) (*service.StockResult, error)
}

type CollectionRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

type OrderFeedImporter interface {
	ImportFeed(ctx context.Context) (*service.ImportResult, error)
}

type StorefrontFulfiller interface {
	FulfillStorefrontOrders(ctx context.Context) (*service.StorefrontResult, error)
}

// QueuePurger 数据库队列的历史清理
type QueuePurger interface {
	PurgeDone(ctx context.Context, before time.Time) (int64, error)
}

// ==================== StockSyncTask 库存状态同步 ====================

type StockSyncTask struct {
	*cronTask
	svc StockReconciler

	mu   sync.Mutex
	last *service.StockResult
}

func NewStockSyncTask(svc StockReconciler, spec string, logger *zap.Logger) *StockSyncTask {
	t := &StockSyncTask{svc: svc}
	t.cronTask = newCronTask("StockSyncTask", spec, time.Hour, logger, func(ctx context.Context) error {
		return t.reconcile(ctx)
	})
	return t
}

func (t *StockSyncTask) reconcile(ctx context.Context) error {
	result, err := t.svc.Reconcile(ctx)
	if result != nil {
		t.mu.Lock()
		t.last = result
		t.mu.Unlock()
	}
	return err
}

// LastResult 最近一次执行结果，出错中断时为部分结果
func (t *StockSyncTask) LastResult() *service.StockResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// ==================== CollectionSyncTask 集合同步 ====================

type CollectionSyncTask struct {
	*cronTask
	svc CollectionRefresher
}

func NewCollectionSyncTask(svc CollectionRefresher, spec string, logger *zap.Logger) *CollectionSyncTask {
	t := &CollectionSyncTask{svc: svc}
	t.cronTask = newCronTask("CollectionSyncTask", spec, 10*time.Minute, logger, func(ctx context.Context) error {
		_, err := t.svc.Refresh(ctx)
		return err
	})
	return t
}

// ==================== OrderImportTask 店铺订单导入 ====================

type OrderImportTask struct {
	*cronTask
	svc OrderFeedImporter
}

func NewOrderImportTask(svc OrderFeedImporter, spec string, logger *zap.Logger) *OrderImportTask {
	t := &OrderImportTask{svc: svc}
	t.cronTask = newCronTask("OrderImportTask", spec, 10*time.Minute, logger, func(ctx context.Context) error {
		_, err := t.svc.ImportFeed(ctx)
		return err
	})
	return t
}

// ==================== FulfillmentTask 店铺履约回写 ====================

type FulfillmentTask struct {
	*cronTask
	svc StorefrontFulfiller
}

func NewFulfillmentTask(svc StorefrontFulfiller, spec string, logger *zap.Logger) *FulfillmentTask {
	t := &FulfillmentTask{svc: svc}
	t.cronTask = newCronTask("FulfillmentTask", spec, 10*time.Minute, logger, func(ctx context.Context) error {
		_, err := t.svc.FulfillStorefrontOrders(ctx)
		return err
	})
	return t
}

// ==================== QueueCleanupTask 队列历史清理 ====================

const DefaultQueueRetention = 7 * 24 * time.Hour

type QueueCleanupTask struct {
	*cronTask
	purger    QueuePurger
	retention time.Duration
	now       func() time.Time
}

func NewQueueCleanupTask(purger QueuePurger, spec string, retention time.Duration, logger *zap.Logger) *QueueCleanupTask {
	if retention <= 0 {
		retention = DefaultQueueRetention
	}
	t := &QueueCleanupTask{purger: purger, retention: retention, now: time.Now}
	t.cronTask = newCronTask("QueueCleanupTask", spec, 5*time.Minute, logger, t.purge)
	return t
}

func (t *QueueCleanupTask) purge(ctx context.Context) error {
	removed, err := t.purger.PurgeDone(ctx, t.now().Add(-t.retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		t.logger.Info("已清理完成的队列任务", zap.Int64("removed", removed))
	}
	return nil
}
