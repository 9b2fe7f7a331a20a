// 本文件用于监听配置文件变化并热加载日志级别与负载目标
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"schwer/internal/config"
	"schwer/internal/logger"
	"schwer/internal/models"
)

const defaultDebounce = 500 * time.Millisecond // 编辑器保存往往产生多次写事件

// ReloadFunc 配置重新加载成功后的回调
type ReloadFunc func(cfg *models.Config)

// ConfigWatcher 配置文件监控器
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload ReloadFunc
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewConfigWatcher 创建配置文件监控器
func NewConfigWatcher(path string, onReload ReloadFunc) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		watcher:  w,
		path:     abs,
		onReload: onReload,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// Start 监听配置文件所在目录，兼容先写临时文件再改名的保存方式
func (cw *ConfigWatcher) Start() error {
	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		logger.Error("添加配置目录监控失败: %s, 错误: %v", dir, err)
		return err
	}

	cw.wg.Add(1)
	go cw.handleEvents()

	logger.Info("开始监控配置文件: %s", cw.path)
	return nil
}

// Close 关闭监控器并等待事件协程退出
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
		cw.timer = nil
	}
	cw.mu.Unlock()

	close(cw.done)
	err := cw.watcher.Close()
	cw.wg.Wait()
	return err
}

func (cw *ConfigWatcher) handleEvents() {
	defer cw.wg.Done()
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("配置监控错误: %v", err)
		}
	}
}

func (cw *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	logger.Debug("收到配置文件事件: %s, 操作: %s", event.Name, event.Op.String())
	cw.scheduleReload()
}

// scheduleReload 在最后一次写入后静默 debounce 时长再加载
func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	select {
	case <-cw.done:
		return
	default:
	}

	// 改名保存的间隙文件可能暂时不存在，此时不回退到默认配置
	if _, err := os.Stat(cw.path); err != nil {
		logger.Debug("配置文件暂不可读，跳过本次加载: %v", err)
		return
	}
	cfg, err := config.LoadConfig(cw.path)
	if err != nil {
		logger.Warn("配置热加载失败，保留当前配置: %v", err)
		return
	}

	logger.SetLogLevel(cfg.LogLevel)
	logger.Info("配置已重新加载: log_level=%s", cfg.LogLevel)
	if cw.onReload != nil {
		cw.onReload(cfg)
	}
}
