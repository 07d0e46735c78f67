// Package statuswatch keeps command status in sync with a YAML file mapping
// command or group names to their enabled flag.
package statuswatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

const defaultDebounce = 100 * time.Millisecond

// Applier moves the live status towards a desired status.
type Applier interface {
	ApplyStatus(ctx context.Context, after schema.Status) (closed, opened []string, err error)
}

// Config configures a Watcher.
type Config struct {
	Path     string
	Debounce time.Duration
}

// Load reads a status file. A missing file yields an empty status.
func Load(path string) (schema.Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.Status{}, nil
		}
		return nil, err
	}
	status := schema.Status{}
	if err := yaml.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse status file %s: %w", path, err)
	}
	return status, nil
}

// Watcher re-applies the status file whenever it changes.
type Watcher struct {
	path     string
	debounce time.Duration
	applier  Applier

	mu      sync.Mutex
	applied int
}

// New constructs a Watcher.
func New(cfg Config, applier Applier) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("status file path is required")
	}
	if applier == nil {
		return nil, errors.New("status applier is required")
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, applier: applier}, nil
}

// Path returns the absolute status file path.
func (w *Watcher) Path() string {
	return w.path
}

// Applied returns how many times the file has been applied.
func (w *Watcher) Applied() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applied
}

// Apply loads the status file once and applies it.
func (w *Watcher) Apply(ctx context.Context) error {
	log := pslog.Ctx(ctx).With("path", w.path)
	status, err := Load(w.path)
	if err != nil {
		log.Warn("status file load failed", "err", err)
		return err
	}
	closed, opened, err := w.applier.ApplyStatus(ctx, status)
	w.mu.Lock()
	w.applied++
	w.mu.Unlock()
	if err != nil {
		log.Warn("status file apply failed", "err", err)
		return err
	}
	log.Info("status file applied", "entries", len(status), "closed", len(closed), "opened", len(opened))
	return nil
}

// Run applies the file, then watches its directory until ctx is done.
// Editors that replace the file by rename are handled since the directory,
// not the file, is watched.
func (w *Watcher) Run(ctx context.Context) error {
	log := pslog.Ctx(ctx).With("path", w.path)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	if err := w.Apply(ctx); err != nil {
		log.Warn("status file initial apply failed", "err", err)
	}
	log.Info("status watch started", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("status watch stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			log.Debug("status file change detected", "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("status watch error", "err", err)
		case <-timer.C:
			_ = w.Apply(ctx)
		}
	}
}
