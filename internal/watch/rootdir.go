package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// rootMonitor watches a directory tree for files and directories appearing
// and disappearing. fsnotify is not recursive, so every directory is added
// individually and new directories are added as they are created.
type rootMonitor struct {
	root    string
	ignore  IgnoreFunc
	exclude []string
	fsw     *fsnotify.Watcher
	dirs    map[string]bool // owned by loop once started

	changes chan change
	errors  chan error
	done    chan struct{}
	once    sync.Once
}

func newRootMonitor(root string, ignore IgnoreFunc, exclude []string) (*rootMonitor, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &rootMonitor{
		root:    root,
		ignore:  ignore,
		exclude: exclude,
		fsw:     fsw,
		dirs:    make(map[string]bool),
		changes: make(chan change),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
	}
	if err := m.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	go m.loop()
	return m, nil
}

// skip reports whether a directory or file is kept out of monitoring.
func (m *rootMonitor) skip(path string) bool {
	if path == m.root {
		return false
	}
	if m.ignore(path) {
		return true
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// addTree adds dir and every directory below it that is not skipped.
// Unreadable subdirectories are left out; an unreadable dir is an error.
func (m *rootMonitor) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if m.skip(path) {
			return filepath.SkipDir
		}
		if err := m.fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		m.dirs[path] = true
		return nil
	})
}

// dropTree forgets dir and every directory below it.
func (m *rootMonitor) dropTree(dir string) {
	prefix := dir + string(filepath.Separator)
	for path := range m.dirs {
		if path == dir || strings.HasPrefix(path, prefix) {
			delete(m.dirs, path)
			_ = m.fsw.Remove(path)
		}
	}
}

func (m *rootMonitor) loop() {
	for {
		select {
		case event, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			c, ok := m.translate(event)
			if !ok {
				continue
			}
			select {
			case m.changes <- c:
			case <-m.done:
				return
			}

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

// translate maps an fsnotify event onto a structural change. Writes and
// attribute changes are not structural.
func (m *rootMonitor) translate(event fsnotify.Event) (change, bool) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			// Already gone again.
			return change{}, false
		}
		if m.skip(path) {
			return change{}, false
		}
		if info.IsDir() {
			if err := m.addTree(path); err != nil {
				select {
				case m.errors <- fmt.Errorf("watching %s: %w", path, err):
				default:
				}
			}
			return change{kind: dirAdded, path: path}, true
		}
		return change{kind: fileAdded, path: path}, true

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if m.dirs[path] {
			m.dropTree(path)
			return change{kind: dirRemoved, path: path}, true
		}
		if m.skip(path) {
			return change{}, false
		}
		return change{kind: fileRemoved, path: path}, true
	}
	return change{}, false
}

func (m *rootMonitor) close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.fsw.Close()
	})
	return err
}
