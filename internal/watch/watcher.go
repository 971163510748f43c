// Package watch keeps a set of file watches equal to the import closure of one
// or more input stylesheets and publishes an event whenever the caller should
// rebuild.
//
// Two monitors feed a Watcher. The root monitor reports files and directories
// appearing or disappearing under the root directory; the content monitor
// reports edits to files in the closure. Both are drained by the single
// goroutine running Run, which re-resolves the closure, diffs it against the
// current watch set, and applies the difference before handling the next
// signal.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aellingwood/sasswatch/internal/config"
	"github.com/aellingwood/sasswatch/internal/graph"
)

// eventBuffer is the capacity of the events channel.
const eventBuffer = 16

// Option configures a Watcher.
type Option func(*Watcher)

// WithResolver replaces the default Sass resolver.
func WithResolver(r graph.Resolver) Option {
	return func(w *Watcher) { w.resolver = r }
}

// WithLogOutput sets where diagnostics are written. The default is stderr.
func WithLogOutput(out io.Writer) Option {
	return func(w *Watcher) { w.logOut = out }
}

// Watcher maintains the watch set for a fixed list of inputs.
type Watcher struct {
	inputs   []string
	cfg      config.Config
	resolver graph.Resolver
	ignore   IgnoreFunc
	logOut   io.Writer
	log      *logger

	events  chan Event
	started atomic.Bool

	mu    sync.Mutex
	files Set
}

// New creates a Watcher for inputs. The configuration is copied and not read
// again after New returns. An EventInit is queued on Events before New returns,
// whether or not Run is ever called.
func New(inputs []string, cfg config.Config, opts ...Option) (*Watcher, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}

	cfg.IncludePaths = slices.Clone(cfg.IncludePaths)
	cfg.IncludeExtensions = slices.Clone(cfg.IncludeExtensions)
	cfg.Exclude = slices.Clone(cfg.Exclude)
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	abs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		p, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("resolving input %s: %w", input, err)
		}
		abs = append(abs, p)
	}

	w := &Watcher{
		inputs: abs,
		cfg:    cfg,
		ignore: NewIgnore(cfg.IncludeExtensions),
		logOut: os.Stderr,
		events: make(chan Event, eventBuffer),
		files:  make(Set),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = newLogger(w.logOut, cfg.Verbosity)
	if w.resolver == nil {
		w.resolver = &graph.Sass{OnUnresolved: func(from, target string) {
			w.log.printf(3, "Unresolved import %q in %s", target, from)
		}}
	}

	w.log.printf(1, "Start watching %q...", strings.Join(abs, ", "))
	w.events <- Event{Kind: EventInit}
	return w, nil
}

// Events returns the channel on which EventInit and EventUpdate are
// published. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Files returns the current watch set in lexical order.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Sorted()
}

// Run starts both monitors and processes their signals until ctx is done or
// a resolution fails. It returns nil on cancellation and a *ResolutionError
// when the closure cannot be computed. Every watch handle is released before
// Run returns. Run must be called once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(w.events)

	root, err := newRootMonitor(w.cfg.RootDir, w.ignore, w.cfg.Exclude)
	if err != nil {
		return fmt.Errorf("watching %s: %w", w.cfg.RootDir, err)
	}
	defer root.close()

	initial, err := w.resolve()
	if err != nil {
		return err
	}

	content, err := newContentMonitor(w.cfg.Debounce)
	if err != nil {
		return fmt.Errorf("creating content watcher: %w", err)
	}
	defer content.close()

	w.applyWatches(content, initial, initial.Sorted(), nil)
	w.setFiles(initial)
	w.log.printf(2, "Initially watched files: %s", strings.Join(initial.Sorted(), ", "))

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-root.changes:
			toAdd, toRemove, err := w.refresh(content)
			if err != nil {
				return err
			}
			if len(toAdd) == 0 && len(toRemove) == 0 {
				continue
			}
			w.log.printf(2, "%s", c)
			if !w.emit(ctx, EventUpdate) {
				return nil
			}

		case path := <-content.changes:
			if _, _, err := w.refresh(content); err != nil {
				return err
			}
			w.log.printf(2, "File %q is modified", path)
			if !w.emit(ctx, EventUpdate) {
				return nil
			}

		case err := <-root.errors:
			w.log.warnf("root directory watcher: %v", err)

		case err := <-content.errors:
			w.log.warnf("file watcher: %v", err)
		}
	}
}

// resolve computes the union of the closures of every input. A failure for
// any input fails the whole resolution.
func (w *Watcher) resolve() (Set, error) {
	files := make(Set)
	for _, input := range w.inputs {
		deps, err := w.resolver.Resolve(input, w.cfg.IncludePaths, w.cfg.IncludeExtensions)
		if err != nil {
			return nil, &ResolutionError{Input: input, Err: err}
		}
		for _, dep := range deps {
			if key, err := graph.Canonical(dep); err == nil {
				dep = key
			}
			files.Add(dep)
		}
	}
	return files, nil
}

// refresh re-resolves the closure and moves the watch set onto it. The watch
// set is untouched when resolution fails.
func (w *Watcher) refresh(content *contentMonitor) (toAdd, toRemove []string, err error) {
	next, err := w.resolve()
	if err != nil {
		return nil, nil, err
	}

	w.mu.Lock()
	previous := w.files
	w.mu.Unlock()

	toAdd, toRemove = Diff(previous, next)
	toAdd = w.applyWatches(content, next, toAdd, toRemove)
	w.setFiles(next)

	if len(toAdd) > 0 {
		w.log.printf(3, "Start watching files: %s", strings.Join(toAdd, ", "))
	}
	if len(toRemove) > 0 {
		w.log.printf(3, "Stop watching files: %s", strings.Join(toRemove, ", "))
	}
	if len(toAdd)+len(toRemove) > 0 {
		w.log.printf(3, "Currently watched files: %s", strings.Join(next.Sorted(), ", "))
	}
	return toAdd, toRemove, nil
}

// applyWatches moves the content handles and returns the paths actually
// added. A path whose directory vanished after resolving is logged and left
// out of next; the root monitor reports the removal and the following refresh
// tries it again.
func (w *Watcher) applyWatches(content *contentMonitor, next Set, toAdd, toRemove []string) []string {
	err := content.apply(toAdd, toRemove)
	if err == nil {
		return toAdd
	}
	w.log.warnf("%v", err)

	var added []string
	for _, path := range toAdd {
		if content.holds(path) {
			added = append(added, path)
			continue
		}
		delete(next, path)
	}
	return added
}

func (w *Watcher) setFiles(files Set) {
	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
}

func (w *Watcher) emit(ctx context.Context, kind EventKind) bool {
	select {
	case w.events <- Event{Kind: kind}:
		return true
	case <-ctx.Done():
		return false
	}
}
