package pubfeed

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch rebuilds the asset index and invalidates the feed cache whenever the
// content tree changes. It blocks until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pubfeed: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := a.watchTree(watcher, a.Config.ContentDir); err != nil {
		return err
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			a.logger.Debugf("change detected: %s (%s)", event.Name, event.Op)
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := a.watchTree(watcher, event.Name); err != nil {
					a.logger.Warnf("watch %s: %v", event.Name, err)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, a.refresh)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warnf("watcher error: %v", err)
		}
	}
}

func (a *App) refresh() {
	if err := a.Reindex(); err != nil {
		a.logger.Errorf("reindex: %v", err)
		return
	}
	if a.Cache != nil {
		a.Cache.Invalidate()
	}
}

// watchTree adds root and every directory below it; fsnotify is not recursive.
func (a *App) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("pubfeed: watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
