package cli

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const reloadDebounce = 500 * time.Millisecond

// watchFiles calls the reload function of a file after it changes. Parent
// directories are watched so that editors replacing the file by rename are
// noticed. gs:// paths are not watched. The watcher stops with ctx.
func watchFiles(ctx context.Context, reloaders map[string]func(context.Context) error) error {
	logger := ctxlog.From(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create file watcher")
	}

	targets := map[string]func(context.Context) error{}
	dirs := map[string]struct{}{}
	for p, reload := range reloaders {
		if strings.HasPrefix(p, "gs://") || p == "-" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return goerr.Wrap(err, "failed to resolve watched file", goerr.V("path", p))
		}
		targets[abs] = reload
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", dir))
		}
	}
	logger.Info("Watching files for changes", "files", len(targets))

	go func() {
		defer watcher.Close()

		var mu sync.Mutex
		timers := map[string]*time.Timer{}
		defer func() {
			mu.Lock()
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				name := filepath.Clean(event.Name)
				reload, found := targets[name]
				if !found {
					continue
				}

				mu.Lock()
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(reloadDebounce, func() {
					if ctx.Err() != nil {
						return
					}
					if err := reload(ctx); err != nil {
						logger.Error("Reload failed, keeping the previous version", "path", name, "error", err)
						return
					}
					logger.Info("File reloaded", "path", name)
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("File watcher error", "error", err)
			}
		}
	}()

	return nil
}
