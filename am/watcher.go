package am

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/logger"
)

// debouncePeriod collapses the burst of filesystem events most editors emit
// for a single save into one reload.
const debouncePeriod = 500 * time.Millisecond

// ReloadCallback is invoked with the freshly loaded config after a watched
// file changes on disk.
type ReloadCallback func(*Config)

// ConfigWatcher reloads configuration when a watched file changes. Writes
// made through Save are suppressed so a process does not react to itself.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	callback ReloadCallback

	mu        sync.Mutex
	ownWrites map[string]time.Time
	debounce  *time.Timer

	done chan struct{}
}

var (
	globalWatcher   *ConfigWatcher
	globalWatcherMu sync.Mutex
)

// NewConfigWatcher watches path and calls cb after each external change.
func NewConfigWatcher(path string, cb ReloadCallback) (*ConfigWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating filesystem watcher")
	}

	// Watching the directory rather than the file survives the
	// rename-then-replace dance editors and Save both perform.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watching %s", filepath.Dir(path))
	}

	cw := &ConfigWatcher{
		watcher:   fw,
		callback:  cb,
		ownWrites: make(map[string]time.Time),
		done:      make(chan struct{}),
	}
	go cw.loop(path)
	return cw, nil
}

// Watch installs the process-wide config watcher on the user config file.
func Watch(cb ReloadCallback) error {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()

	if globalWatcher != nil {
		return nil
	}

	path, err := UserConfigPath()
	if err != nil {
		return err
	}

	cw, err := NewConfigWatcher(path, cb)
	if err != nil {
		return err
	}
	globalWatcher = cw
	return nil
}

// MarkOwnWrite records that this process is about to write path, so the next
// change event for it is ignored.
func MarkOwnWrite(path string) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()

	if globalWatcher != nil {
		globalWatcher.markOwnWrite(path)
	}
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) markOwnWrite(path string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.ownWrites[filepath.Clean(path)] = time.Now()
}

// checkOwnWrite reports whether path was written by this process within the
// debounce window, consuming the mark.
func (cw *ConfigWatcher) checkOwnWrite(path string) bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	key := filepath.Clean(path)
	when, ok := cw.ownWrites[key]
	if !ok {
		return false
	}
	delete(cw.ownWrites, key)
	return time.Since(when) < 2*debouncePeriod
}

// isBackupFile filters out the rotation files Save maintains.
func isBackupFile(path string) bool {
	base := filepath.Base(path)
	for _, suffix := range []string{".back1", ".back2", ".back3"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

func (cw *ConfigWatcher) loop(target string) {
	cleanTarget := filepath.Clean(target)

	for {
		select {
		case <-cw.done:
			return

		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cleanTarget || isBackupFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if cw.checkOwnWrite(ev.Name) {
				logger.Debugw("ignoring own config write", logger.FieldPath, ev.Name)
				continue
			}
			cw.scheduleReload(target)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("config watcher error", logger.FieldError, err)
		}
	}
}

func (cw *ConfigWatcher) scheduleReload(path string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounce = time.AfterFunc(debouncePeriod, func() {
		cw.reload(path)
	})
}

func (cw *ConfigWatcher) reload(path string) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		logger.Warnw("config reload failed", logger.FieldPath, path, logger.FieldError, err)
		return
	}

	logger.Infow("config reloaded", logger.FieldPath, path)
	if cw.callback != nil {
		cw.callback(cfg)
	}
}
