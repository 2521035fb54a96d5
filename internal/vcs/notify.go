package vcs

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// HeadNotifier signals when a repository's HEAD file is rewritten. git
// replaces HEAD via rename, so the directory is watched rather than the file.
type HeadNotifier struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	logger  *log.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewHeadNotifier starts watching gitDir.
func NewHeadNotifier(gitDir string, logger *log.Logger) (*HeadNotifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("vcs: create watcher: %w", err)
	}
	if err := fsw.Add(gitDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("vcs: watch %s: %w", gitDir, err)
	}
	n := &HeadNotifier{
		watcher: fsw,
		events:  make(chan struct{}, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.loop()
	return n, nil
}

// C delivers a value after HEAD changes. Bursts collapse into one pending value.
func (n *HeadNotifier) C() <-chan struct{} {
	return n.events
}

// Close stops watching and waits for the event loop to exit.
func (n *HeadNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		n.wg.Wait()
	})
	return err
}

func (n *HeadNotifier) loop() {
	defer n.wg.Done()
	defer func() {
		if r := recover(); r != nil && n.logger != nil {
			n.logger.Error("head notifier panicked", "panic", r)
		}
	}()
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != "HEAD" {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case n.events <- struct{}{}:
			default:
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			if n.logger != nil {
				n.logger.Warn("head notifier error", "err", err)
			}
		}
	}
}
