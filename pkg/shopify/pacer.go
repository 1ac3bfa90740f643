package shopify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestPause 两次写调用之间的最小间隔
const DefaultRequestPause = 510 * time.Millisecond

// ==================== Pacer 全局节流器 ====================

// Pacer 进程内共享的出站节流器
//   - 写调用串行执行，开始前距上一次调用结束至少 pause
//   - 读调用不互相等待，但结束时间计入下一次写调用的间隔
//   - 读调用额外受令牌桶限制
type Pacer struct {
	writeMu sync.Mutex

	mu       sync.Mutex
	lastDone time.Time

	pause time.Duration
	reads *rate.Limiter
}

// NewPacer 创建节流器，readRPS <= 0 表示读调用不限速
func NewPacer(pause time.Duration, readRPS float64, readBurst int) *Pacer {
	p := &Pacer{pause: pause}
	if readRPS > 0 {
		if readBurst <= 0 {
			readBurst = 1
		}
		p.reads = rate.NewLimiter(rate.Limit(readRPS), readBurst)
	}
	return p
}

// Pause 返回写调用间隔
func (p *Pacer) Pause() time.Duration {
	return p.pause
}

// LastCall 最近一次调用结束时间
func (p *Pacer) LastCall() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDone
}

// Write 执行写调用
func (p *Pacer) Write(ctx context.Context, fn func() error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	// 等待期间可能有读调用结束，循环直到间隔满足
	for {
		wait := p.pause - time.Since(p.LastCall())
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	defer p.markDone()
	return fn()
}

// Read 执行读调用
func (p *Pacer) Read(ctx context.Context, fn func() error) error {
	if p.reads != nil {
		if err := p.reads.Wait(ctx); err != nil {
			return err
		}
	}
	defer p.markDone()
	return fn()
}

func (p *Pacer) markDone() {
	p.mu.Lock()
	p.lastDone = time.Now()
	p.mu.Unlock()
}
