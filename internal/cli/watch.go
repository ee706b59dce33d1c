package cli

import (
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// fileWatcher reports changes to a single file. The parent directory is
// watched so that editors replacing the file by rename are still seen.
type fileWatcher struct {
	fsw      *fsnotify.Watcher
	target   string
	debounce time.Duration
	logger   *log.Logger
	changes  chan struct{}
}

// newFileWatcher starts watching path. Close releases the watch.
func newFileWatcher(path string, debounce time.Duration, logger *log.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &fileWatcher{
		fsw:      fsw,
		target:   abs,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}
	go w.run()
	logger.Debug("watching graph file", "path", abs)
	return w, nil
}

// Changes signals once per debounced burst of writes. It is closed when the
// watcher stops.
func (w *fileWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *fileWatcher) Close() error {
	return w.fsw.Close()
}

func (w *fileWatcher) run() {
	defer close(w.changes)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("graph file changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// wait returns a command that delivers a watchMsg on the next change.
func (w *fileWatcher) wait() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-w.changes; !ok {
			return nil
		}
		return watchMsg(time.Now())
	}
}
