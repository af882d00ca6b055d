// control/watch.go
// Author: momentics <momentics@gmail.com>
//
// File watcher used to hot-reload payloads served by the endpoints.

package control

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-nio/internal/logging"
)

// debounceDelay lets editors finish their write/rename sequence.
const debounceDelay = 100 * time.Millisecond

// FileWatcher reloads one file and hands its contents to a callback.
type FileWatcher struct {
	path     string
	w        *fsnotify.Watcher
	onChange func([]byte)
	log      logr.Logger

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// WatchFile loads path once, calls onChange with the contents and keeps
// calling it after every change until Close. The parent directory is
// watched so atomic replace-by-rename is observed.
func WatchFile(path string, onChange func([]byte), log logr.Logger) (*FileWatcher, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	onChange(data)

	fw := &FileWatcher{
		path:     path,
		w:        w,
		onChange: onChange,
		log:      log.WithName("file-watcher").WithValues("path", path),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *FileWatcher) loop() {
	defer close(fw.stopped)
	trace := fw.log.V(logging.TRACE)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			trace.Info("File changed", "event", ev)
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, fw.reload)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.log.Error(err, "file watcher failed")
		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) reload() {
	select {
	case <-fw.done:
		return
	default:
	}
	data, err := os.ReadFile(fw.path)
	if err != nil {
		// A rename-away is followed by a create; keep the previous contents.
		fw.log.V(logging.DEBUG).Info("Reload skipped", "err", err.Error())
		return
	}
	fw.onChange(data)
	fw.log.V(logging.VERBOSE).Info("Reloaded file", "bytes", len(data))
}

// Close stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		err = fw.w.Close()
		<-fw.stopped
	})
	return err
}
