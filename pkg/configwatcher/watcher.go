package configwatcher

import (
	"course_platform_backend/internal/config"
	"course_platform_backend/pkg/logger"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigReloader 在配置文件变更并成功解析后收到新配置
type ConfigReloader func(cfg *config.Config)

// WatchConfig 监听配置文件变更并热加载。
// 监听的是所在目录而不是文件本身：编辑器保存时常用
// 临时文件替换（rename+create），直接监听文件会在替换后失效。
func WatchConfig(configPath string, reloader ConfigReloader) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Error("Failed to create config watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		logger.Log.Error("Failed to resolve config path", zap.String("path", configPath), zap.Error(err))
		return
	}
	dir := filepath.Dir(absPath)

	if err := watcher.Add(dir); err != nil {
		logger.Log.Error("Failed to watch config directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)

	reload := func() {
		newCfg, err := config.LoadConfig(dir)
		if err != nil {
			// 解析失败时保留旧配置继续运行
			logger.Log.Error("Failed to reload config, keeping previous one", zap.Error(err))
			return
		}
		logger.Log.Info("Config file changed, reloading", zap.String("path", absPath))
		reloader(newCfg)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// 防抖：一次保存往往触发连续多个事件
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(time.Second, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
