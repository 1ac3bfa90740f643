package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/service"
	"shopify_sync_v1/pkg/queue"
)

// ==================== TaskManager 同步任务管理器 ====================

// TaskManager 统一管理刊登消费者与各个定时任务
type TaskManager struct {
	worker          *ListingWorker
	stockTask       *StockSyncTask
	collectionTask  *CollectionSyncTask
	orderTask       *OrderImportTask
	fulfillmentTask *FulfillmentTask
	cleanupTask     *QueueCleanupTask
	logger          *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Queue     queue.Queue
	JobRunner JobRunner

	StockService      StockReconciler
	CollectionService CollectionRefresher
	OrderImporter     OrderFeedImporter
	Fulfiller         StorefrontFulfiller
	// 仅数据库队列需要
	QueuePurger QueuePurger

	Logger *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 刊登同步消费者
	WorkerEnabled bool
	Workers       int
	JobDeadline   time.Duration

	StockEnabled bool
	StockSpec    string

	CollectionEnabled bool
	CollectionSpec    string

	OrderEnabled bool
	OrderSpec    string

	FulfillmentEnabled bool
	FulfillmentSpec    string

	CleanupSpec    string
	QueueRetention time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		WorkerEnabled: true,
		Workers:       2,
		JobDeadline:   DefaultJobDeadline,

		StockEnabled: true,
		StockSpec:    "0 0 */1 * * *",

		CollectionEnabled: true,
		CollectionSpec:    "0 30 */6 * * *",

		OrderEnabled: true,
		OrderSpec:    "0 */15 * * * *",

		FulfillmentEnabled: false,
		FulfillmentSpec:    "0 0 */2 * * *",

		CleanupSpec:    "0 15 3 * * *",
		QueueRetention: DefaultQueueRetention,
	}
}

// NewTaskManager 创建任务管理器，未启用或缺少依赖的任务不创建
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger.Named("TaskManager")}

	if cfg.WorkerEnabled && deps.Queue != nil && deps.JobRunner != nil {
		tm.worker = NewListingWorker(deps.Queue, deps.JobRunner, cfg.Workers, cfg.JobDeadline, logger)
	}
	if cfg.StockEnabled && deps.StockService != nil {
		tm.stockTask = NewStockSyncTask(deps.StockService, cfg.StockSpec, logger)
	}
	if cfg.CollectionEnabled && deps.CollectionService != nil {
		tm.collectionTask = NewCollectionSyncTask(deps.CollectionService, cfg.CollectionSpec, logger)
	}
	if cfg.OrderEnabled && deps.OrderImporter != nil {
		tm.orderTask = NewOrderImportTask(deps.OrderImporter, cfg.OrderSpec, logger)
	}
	if cfg.FulfillmentEnabled && deps.Fulfiller != nil {
		tm.fulfillmentTask = NewFulfillmentTask(deps.Fulfiller, cfg.FulfillmentSpec, logger)
	}
	if deps.QueuePurger != nil && cfg.CleanupSpec != "" {
		tm.cleanupTask = NewQueueCleanupTask(deps.QueuePurger, cfg.CleanupSpec, cfg.QueueRetention, logger)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务，cron 表达式无效时返回错误
func (tm *TaskManager) Start() error {
	tm.logger.Info("正在启动同步任务...")

	for _, t := range tm.cronTasks() {
		if err := t.Start(); err != nil {
			tm.Stop()
			return err
		}
	}
	if tm.worker != nil {
		tm.worker.Start()
	}

	tm.logger.Info("同步任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.logger.Info("正在停止同步任务...")

	if tm.worker != nil {
		tm.worker.Stop()
	}
	for _, t := range tm.cronTasks() {
		t.Stop()
	}

	tm.logger.Info("同步任务已全部停止")
}

func (tm *TaskManager) cronTasks() []*cronTask {
	var tasks []*cronTask
	if tm.stockTask != nil {
		tasks = append(tasks, tm.stockTask.cronTask)
	}
	if tm.collectionTask != nil {
		tasks = append(tasks, tm.collectionTask.cronTask)
	}
	if tm.orderTask != nil {
		tasks = append(tasks, tm.orderTask.cronTask)
	}
	if tm.fulfillmentTask != nil {
		tasks = append(tasks, tm.fulfillmentTask.cronTask)
	}
	if tm.cleanupTask != nil {
		tasks = append(tasks, tm.cleanupTask.cronTask)
	}
	return tasks
}

// ==================== 手动触发接口 ====================

// TriggerStockSync 立即执行库存状态同步
func (tm *TaskManager) TriggerStockSync(ctx context.Context) (*service.StockResult, error) {
	if tm.stockTask == nil {
		return nil, ErrTaskDisabled
	}
	err := tm.stockTask.RunNow(ctx)
	return tm.stockTask.LastResult(), err
}

// TriggerCollectionSync 立即执行集合同步
func (tm *TaskManager) TriggerCollectionSync(ctx context.Context) error {
	if tm.collectionTask == nil {
		return ErrTaskDisabled
	}
	return tm.collectionTask.RunNow(ctx)
}

// TriggerOrderImport 立即拉取店铺订单
func (tm *TaskManager) TriggerOrderImport(ctx context.Context) error {
	if tm.orderTask == nil {
		return ErrTaskDisabled
	}
	return tm.orderTask.RunNow(ctx)
}

// TriggerStorefrontFulfillment 立即回写店铺履约
func (tm *TaskManager) TriggerStorefrontFulfillment(ctx context.Context) error {
	if tm.fulfillmentTask == nil {
		return ErrTaskDisabled
	}
	return tm.fulfillmentTask.RunNow(ctx)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]TaskStatus {
	status := map[string]TaskStatus{
		"stock":       disabledStatus,
		"collections": disabledStatus,
		"orders":      disabledStatus,
		"fulfillment": disabledStatus,
		"listing":     disabledStatus,
		"cleanup":     disabledStatus,
	}
	if tm.stockTask != nil {
		status["stock"] = tm.stockTask.Status()
	}
	if tm.collectionTask != nil {
		status["collections"] = tm.collectionTask.Status()
	}
	if tm.orderTask != nil {
		status["orders"] = tm.orderTask.Status()
	}
	if tm.fulfillmentTask != nil {
		status["fulfillment"] = tm.fulfillmentTask.Status()
	}
	if tm.cleanupTask != nil {
		status["cleanup"] = tm.cleanupTask.Status()
	}
	if tm.worker != nil {
		status["listing"] = TaskStatus{Enabled: true, Running: tm.worker.Active() > 0}
	}
	return status
}

var disabledStatus = TaskStatus{Enabled: false}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
	ErrTaskRunning  TaskError = "task is already running"
)
