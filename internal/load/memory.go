// 本文件用于按 MB 分配并保持常驻内存负载
package load

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"schwer/internal/logger"
	"schwer/internal/models"
)

const (
	megaBytes = 1 << 20

	// touchInterval 内定期访问已分配页，防止被换出
	touchInterval = time.Second
)

// MemLoad 维护一块按页分配的内存
type MemLoad struct {
	pageSize int
	sizeMB   atomic.Int64
	allocMB  atomic.Int64

	alloc  [][]byte
	change chan int64
	mu     sync.Mutex

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewMemLoad 创建内存负载，启动后立即分配 sizeMB
func NewMemLoad(sizeMB int64) *MemLoad {
	l := &MemLoad{
		pageSize: pageSize(),
		change:   make(chan int64, 1),
	}
	if sizeMB > 0 {
		l.sizeMB.Store(sizeMB)
		l.change <- sizeMB
	}
	return l
}

// Start 启动内存负载协程
func (l *MemLoad) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.wg.Add(1)
	go l.load(ctx)
}

// Stop 通知负载协程退出并释放内存
func (l *MemLoad) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Update 更新内存分配大小（MB），未被消费的旧值会被新值覆盖
func (l *MemLoad) Update(size int64) {
	if size < 0 {
		size = 0
	}
	l.sizeMB.Store(size)
	logger.Info("更新内存负载: %d MB", size)

	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.change:
	default:
	}
	l.change <- size
}

// SizeMB 返回请求的分配大小
func (l *MemLoad) SizeMB() int64 {
	return l.sizeMB.Load()
}

// AllocatedMB 返回实际已分配的大小
func (l *MemLoad) AllocatedMB() int64 {
	return l.allocMB.Load()
}

func (l *MemLoad) load(ctx context.Context) {
	defer l.wg.Done()
	defer l.release()

	ticker := time.NewTicker(touchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case size := <-l.change:
			l.release()
			l.allocate(size)
			logger.Info("内存分配完成 - 页大小: %d 字节, 页数: %d, 总计: %s",
				l.pageSize, len(l.alloc), humanize.IBytes(uint64(len(l.alloc)*l.pageSize)))
		case <-ticker.C:
			l.touch()
		}
	}
}

func (l *MemLoad) allocate(size int64) {
	pages := pagesFor(size, l.pageSize)
	// 逐页追加，不按请求值预分配容量
	l.alloc = nil
	for page := int64(0); page < pages; page++ {
		chunk := make([]byte, l.pageSize)
		// 写入一次使页面真正驻留
		chunk[0] = 1
		l.alloc = append(l.alloc, chunk)
	}
	l.allocMB.Store(int64(len(l.alloc)*l.pageSize) / megaBytes)
}

// pagesFor 返回 size MB 对应的页数，非法或超出字节范围的大小按 0 处理
func pagesFor(size int64, pageSize int) int64 {
	if size <= 0 || size > models.MaxMemSizeMB || pageSize <= 0 {
		return 0
	}
	return size * megaBytes / int64(pageSize)
}

func (l *MemLoad) touch() {
	for page := range l.alloc {
		l.alloc[page][rand.Intn(l.pageSize)]++
	}
}

func (l *MemLoad) release() {
	if l.alloc == nil {
		return
	}
	l.alloc = nil
	l.allocMB.Store(0)
	runtime.GC()
}
