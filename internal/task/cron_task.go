package task

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ==================== cronTask 定时任务骨架 ====================

// cronTask 定时执行一个 run 函数，同一时刻只允许一次执行
type cronTask struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error

	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex // 保证串行执行
	first   sync.WaitGroup
	stateMu sync.RWMutex
	state   TaskStatus
}

// TaskStatus 任务运行状态
type TaskStatus struct {
	Enabled   bool       `json:"enabled"`
	Schedule  string     `json:"schedule,omitempty"`
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func newCronTask(name, spec string, timeout time.Duration, logger *zap.Logger, run func(ctx context.Context) error) *cronTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &cronTask{
		name:    name,
		spec:    spec,
		timeout: timeout,
		run:     run,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.Named(name),
		state:   TaskStatus{Enabled: true, Schedule: spec},
	}
}

// Start 首次立即执行，之后按 cron 表达式执行
func (t *cronTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.tick); err != nil {
		return err
	}

	t.first.Add(1)
	go func() {
		defer t.first.Done()
		t.tick()
	}()

	t.cron.Start()
	t.logger.Info("定时任务已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (t *cronTask) Stop() {
	<-t.cron.Stop().Done()
	// 首次执行不在 cron 管理范围内
	t.first.Wait()
	t.logger.Info("定时任务已停止")
}

func (t *cronTask) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	if err := t.RunNow(ctx); err != nil && err != ErrTaskRunning {
		t.logger.Error("定时任务执行失败", zap.Error(err))
	}
}

// RunNow 立即执行一次，上一次尚未结束时返回 ErrTaskRunning
func (t *cronTask) RunNow(ctx context.Context) error {
	if !t.mu.TryLock() {
		t.logger.Info("上一次执行尚未结束，跳过")
		return ErrTaskRunning
	}
	defer t.mu.Unlock()

	t.setRunning(true)
	start := time.Now()
	err := t.run(ctx)
	t.finish(start, err)

	if err == nil {
		t.logger.Info("执行完成", zap.Duration("elapsed", time.Since(start)))
	}
	return err
}

func (t *cronTask) setRunning(running bool) {
	t.stateMu.Lock()
	t.state.Running = running
	t.stateMu.Unlock()
}

func (t *cronTask) finish(start time.Time, err error) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.state.Running = false
	t.state.LastRunAt = &start
	t.state.LastError = ""
	if err != nil {
		t.state.LastError = err.Error()
	}
}

func (t *cronTask) Status() TaskStatus {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.state
}
