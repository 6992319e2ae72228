package watch

import (
	"errors"
	"sync"
	"time"

	"github.com/radovskyb/watcher"

	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
)

const DefaultInterval = 200 * time.Millisecond

// Watcher polls a game directory for changes.
type Watcher struct {
	w        *watcher.Watcher
	interval time.Duration
	log      console.Logger
}

// New watches root recursively. Paths in ignore (typically the export
// output) never produce events.
func New(root string, ignore []string, interval time.Duration, log console.Logger) (*Watcher, error) {
	w := watcher.New()
	w.IgnoreHiddenFiles(true)
	w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)
	if err := w.Ignore(ignore...); err != nil {
		return nil, err
	}
	if err := w.AddRecursive(root); err != nil {
		return nil, err
	}
	return &Watcher{w: w, interval: interval, log: log}, nil
}

// Run calls onChange with the path of every change until Close is called.
func (w *Watcher) Run(onChange func(path string)) error {
	errs := make(chan error, 1)
	go func() {
		errs <- w.w.Start(w.interval)
	}()
	for {
		select {
		case e := <-w.w.Event:
			if e.IsDir() && e.Op == watcher.Write {
				continue
			}
			w.log.Debug("%s %s", e.Op, e.Path)
			onChange(e.Path)
		case err := <-w.w.Error:
			if errors.Is(err, watcher.ErrWatchedFileDeleted) {
				return err
			}
			w.log.Warn("watch: %s", err)
		case err := <-errs:
			return err
		case <-w.w.Closed:
			return nil
		}
	}
}

// Wait blocks until the first scan is done.
func (w *Watcher) Wait() {
	w.w.Wait()
}

func (w *Watcher) Close() {
	w.w.Close()
}

// Notifier collapses bursts of calls to Notify into one call of out, made
// once delay has passed since the first call of the burst.
type Notifier struct {
	out      func()
	delay    time.Duration
	notified bool
	lock     sync.Mutex
}

func NewNotifier(delay time.Duration, out func()) *Notifier {
	return &Notifier{out: out, delay: delay}
}

func (n *Notifier) Notify() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if !n.notified {
		n.notified = true
		go func() {
			time.Sleep(n.delay)
			n.lock.Lock()
			n.notified = false
			n.lock.Unlock()
			n.out()
		}()
	}
}
