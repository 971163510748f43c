package watch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aellingwood/sasswatch/internal/graph"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// stamp is a digest of a file's content at a point in time. ok is false when
// the file could not be read.
type stamp struct {
	sum uint64
	ok  bool
}

func digest(path string) stamp {
	f, err := os.Open(path)
	if err != nil {
		return stamp{}
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return stamp{}
	}
	return stamp{sum: h.Sum64(), ok: true}
}

// contentMonitor holds one watch handle per file in the watch set and reports
// content changes on changes. Files are watched through their parent
// directories so that editors replacing a file by rename keep being tracked.
type contentMonitor struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	files map[string]stamp
	dirs  map[string]int

	changes chan string
	errors  chan error
	done    chan struct{}
	once    sync.Once
}

func newContentMonitor(debounce time.Duration) (*contentMonitor, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &contentMonitor{
		fsw:      fsw,
		debounce: debounce,
		files:    make(map[string]stamp),
		dirs:     make(map[string]int),
		changes:  make(chan string),
		errors:   make(chan error, 4),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m, nil
}

// apply registers handles for toAdd and releases those for toRemove. Adding a
// held path or removing an unknown one is a no-op.
func (m *contentMonitor) apply(toAdd, toRemove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, path := range toRemove {
		m.removeLocked(path)
	}
	var errs []error
	for _, path := range toAdd {
		if err := m.addLocked(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *contentMonitor) addLocked(path string) error {
	if _, ok := m.files[path]; ok {
		return nil
	}
	dir := filepath.Dir(path)
	if m.dirs[dir] == 0 {
		if err := m.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	m.dirs[dir]++
	m.files[path] = digest(path)
	return nil
}

func (m *contentMonitor) removeLocked(path string) {
	if _, ok := m.files[path]; !ok {
		return
	}
	delete(m.files, path)

	dir := filepath.Dir(path)
	m.dirs[dir]--
	if m.dirs[dir] > 0 {
		return
	}
	delete(m.dirs, dir)
	// The watch is already gone if the directory was deleted.
	_ = m.fsw.Remove(dir)
}

// holds reports whether path currently has a handle.
func (m *contentMonitor) holds(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// watchedDirs returns the number of directories with a live watch.
func (m *contentMonitor) watchedDirs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirs)
}

func (m *contentMonitor) loop() {
	pending := make(map[string]struct{})
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
		case event, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			// Removal is structural and reported by the root monitor.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path, err := graph.Canonical(event.Name)
			if err != nil || !m.holds(path) {
				continue
			}
			pending[path] = struct{}{}
			if m.debounce <= 0 {
				m.flush(pending)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				timer.Reset(m.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			m.flush(pending)

		case err, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
			select {
			case m.errors <- err:
			default:
			}

		case <-m.done:
			return
		}
	}
}

// flush reports every pending path whose content differs from when it was
// added or last reported, then clears pending.
func (m *contentMonitor) flush(pending map[string]struct{}) {
	var changed []string

	m.mu.Lock()
	for path := range pending {
		prev, ok := m.files[path]
		if !ok {
			continue
		}
		cur := digest(path)
		if !cur.ok {
			continue
		}
		if prev.ok && prev.sum == cur.sum {
			continue
		}
		m.files[path] = cur
		changed = append(changed, path)
	}
	m.mu.Unlock()
	clear(pending)

	for _, path := range changed {
		select {
		case m.changes <- path:
		case <-m.done:
			return
		}
	}
}

// close releases every handle.
func (m *contentMonitor) close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.fsw.Close()
		m.mu.Lock()
		clear(m.files)
		clear(m.dirs)
		m.mu.Unlock()
	})
	return err
}
