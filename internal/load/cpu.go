// 本文件用于按百分比在每个 CPU 核心上生成负载
package load

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"schwer/internal/logger"
)

// dutyPeriod 是一次忙等/休眠循环的时长
const dutyPeriod = 10 * time.Millisecond

// CPULoad 为每个核心启动一个绑定 OS 线程的负载协程
type CPULoad struct {
	cores int
	pct   atomic.Int64

	mu     sync.Mutex
	change []chan time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewCPULoad 创建 CPU 负载，初始负载为 pct
func NewCPULoad(cores int, pct int64) *CPULoad {
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	l := &CPULoad{
		cores:  cores,
		change: make([]chan time.Duration, cores),
	}
	l.pct.Store(clampPct(pct))
	return l
}

// Start 启动所有核心的负载协程
func (l *CPULoad) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.mu.Lock()
	defer l.mu.Unlock()
	l.wg.Add(l.cores)
	for i := 0; i < l.cores; i++ {
		ch := make(chan time.Duration, 1)
		l.change[i] = ch
		go l.load(ctx, i, ch)
	}
	logger.Info("CPU 负载已启动，核心数: %d, 负载: %d%%", l.cores, l.pct.Load())
}

// Stop 通知所有协程退出并等待
func (l *CPULoad) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Update 更新所有核心的负载百分比，未被消费的旧值会被新值覆盖
func (l *CPULoad) Update(pct int64) {
	pct = clampPct(pct)
	l.pct.Store(pct)
	logger.Info("更新 CPU 负载百分比: %d%%", pct)

	sleep := sleepDuration(pct)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.change {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		default:
		}
		ch <- sleep
	}
}

// Percent 返回当前负载百分比
func (l *CPULoad) Percent() int64 {
	return l.pct.Load()
}

// Cores 返回负载协程数量
func (l *CPULoad) Cores() int {
	return l.cores
}

func (l *CPULoad) load(ctx context.Context, n int, changed <-chan time.Duration) {
	defer l.wg.Done()

	// 绑定 OS 线程，避免调度器迁移协程
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	sleep := sleepDuration(l.pct.Load())
	for {
		busyUntil := time.Now().Add(dutyPeriod - sleep)
		for time.Now().Before(busyUntil) {
			select {
			case <-ctx.Done():
				return
			case sleep = <-changed:
				logger.Debug("线程 %d 休眠时长: %s", n, sleep)
				busyUntil = time.Now().Add(dutyPeriod - sleep)
			default:
			}
		}
		if sleep <= 0 {
			continue
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case sleep = <-changed:
			timer.Stop()
			logger.Debug("线程 %d 休眠时长: %s", n, sleep)
		case <-timer.C:
		}
	}
}

// sleepDuration 返回每个周期内的休眠时长
func sleepDuration(pct int64) time.Duration {
	pct = clampPct(pct)
	return time.Duration(100-pct) * dutyPeriod / 100
}

func clampPct(pct int64) int64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
