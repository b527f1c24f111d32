// Package watcher turns filesystem events in the mod source directories into
// rescan requests. Bursts of events collapse into a single pending request:
// the signal channel has one slot and an undelivered request absorbs every
// later one.
package watcher

import (
	"github.com/fsnotify/fsnotify"

	"modlab/logger"
)

type Manager struct {
	watcher *fsnotify.Watcher
	rescans chan struct{}
	done    chan struct{}
}

// New watches the given directories. Directories that do not exist are
// skipped with a log line rather than failing the watch.
func New(dirs []string) (*Manager, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		watcher: fw,
		rescans: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logger.Log.Warnw("Watch skipped", "dir", dir, "error", err)
		}
	}
	go m.loop()
	return m, nil
}

// Rescans delivers one signal per coalesced burst of relevant events.
func (m *Manager) Rescans() <-chan struct{} { return m.rescans }

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case event, open := <-m.watcher.Events:
			if !open {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Log.Debugw("Source changed", "path", event.Name, "op", event.Op.String())
			select {
			case m.rescans <- struct{}{}:
			default:
				// A rescan is already pending; this event rides along.
			}
		case err, open := <-m.watcher.Errors:
			if !open {
				return
			}
			logger.Log.Warnw("Watcher error", "error", err)
		}
	}
}

func (m *Manager) Close() error {
	err := m.watcher.Close()
	<-m.done
	return err
}
