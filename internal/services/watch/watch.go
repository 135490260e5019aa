// Package watch signals debounced changes under a set of workspace roots.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/utils"
)

// DefaultDebounceDelay coalesces bursts of events into one change signal.
const DefaultDebounceDelay = 100 * time.Millisecond

const (
	errorCreateWatcherFormat = "create watcher: %w"
	errorWatchRootFormat     = "watch %s: %w"
	logMessageWatchError     = "watch error"
	logMessageAddFailed      = "unable to watch directory"
	logFieldPath             = "path"
)

// Options configures a Watcher.
type Options struct {
	DebounceDelay time.Duration
	Logger        *zap.Logger
}

// Watcher watches every directory below its roots, except .git, and emits one
// signal per quiet period after changes.
type Watcher struct {
	watcher       *fsnotify.Watcher
	changes       chan struct{}
	done          chan struct{}
	logger        *zap.Logger
	debounceDelay time.Duration

	mutex  sync.Mutex
	timer  *time.Timer
	closed bool
	wait   sync.WaitGroup
}

// New starts watching roots.
func New(roots []string, options Options) (*Watcher, error) {
	fsWatcher, createError := fsnotify.NewWatcher()
	if createError != nil {
		return nil, fmt.Errorf(errorCreateWatcherFormat, createError)
	}
	debounceDelay := options.DebounceDelay
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}
	watcher := &Watcher{
		watcher:       fsWatcher,
		changes:       make(chan struct{}, 1),
		done:          make(chan struct{}),
		logger:        utils.LoggerOrNop(options.Logger),
		debounceDelay: debounceDelay,
	}
	for _, root := range roots {
		if addError := watcher.addRecursive(root); addError != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf(errorWatchRootFormat, root, addError)
		}
	}
	watcher.wait.Add(1)
	go watcher.processEvents()
	return watcher, nil
}

// Changes delivers a value after each debounced burst. Signals coalesce while unread.
func (watcher *Watcher) Changes() <-chan struct{} {
	return watcher.changes
}

// Close stops watching. It is safe to call more than once.
func (watcher *Watcher) Close() error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	if watcher.timer != nil {
		watcher.timer.Stop()
	}
	watcher.mutex.Unlock()
	close(watcher.done)
	closeError := watcher.watcher.Close()
	watcher.wait.Wait()
	return closeError
}

func (watcher *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if errors.Is(walkError, fs.ErrNotExist) || errors.Is(walkError, fs.ErrPermission) {
				return nil
			}
			return walkError
		}
		if !entry.IsDir() {
			return nil
		}
		if entry.Name() == utils.GitDirectoryName {
			return filepath.SkipDir
		}
		if addError := watcher.watcher.Add(path); addError != nil {
			watcher.logger.Debug(logMessageAddFailed, zap.String(logFieldPath, path), zap.Error(addError))
		}
		return nil
	})
}

func (watcher *Watcher) processEvents() {
	defer watcher.wait.Done()
	for {
		select {
		case <-watcher.done:
			return
		case event, open := <-watcher.watcher.Events:
			if !open {
				return
			}
			watcher.handleEvent(event)
		case watchError, open := <-watcher.watcher.Errors:
			if !open {
				return
			}
			watcher.logger.Debug(logMessageWatchError, zap.Error(watchError))
		}
	}
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if isInsideGitDirectory(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, statError := os.Stat(event.Name); statError == nil && info.IsDir() {
			if addError := watcher.addRecursive(event.Name); addError != nil {
				watcher.logger.Debug(logMessageAddFailed, zap.String(logFieldPath, event.Name), zap.Error(addError))
			}
		}
	}
	watcher.schedule()
}

func (watcher *Watcher) schedule() {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed {
		return
	}
	if watcher.timer != nil {
		watcher.timer.Stop()
	}
	watcher.timer = time.AfterFunc(watcher.debounceDelay, watcher.emit)
}

func (watcher *Watcher) emit() {
	select {
	case watcher.changes <- struct{}{}:
	default:
	}
}

func isInsideGitDirectory(path string) bool {
	for _, segment := range utils.SplitPathSegments(path) {
		if segment == utils.GitDirectoryName {
			return true
		}
	}
	return false
}
