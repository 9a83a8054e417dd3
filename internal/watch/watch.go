// Package watch re-runs scans on a cron schedule and whenever the policy
// or its packs change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after a policy edit before a rescan.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one scan.
type RunFunc func(ctx context.Context, reason string) error

// Config controls what triggers a run.
type Config struct {
	// Schedule is a standard cron expression or descriptor such as
	// "@every 6h". Empty disables scheduled runs.
	Schedule string

	// PolicyPath and PacksDir are watched for edits. Empty disables.
	PolicyPath string
	PacksDir   string

	Debounce   time.Duration
	RunOnStart bool
}

// Watcher serializes runs: triggers that arrive while a run is in
// progress collapse into one follow-up run.
type Watcher struct {
	cfg      Config
	run      RunFunc
	logger   *zap.Logger
	triggers chan string
}

// New validates cfg and returns a Watcher.
func New(cfg Config, run RunFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" && cfg.PolicyPath == "" && !cfg.RunOnStart {
		return nil, fmt.Errorf("watch needs a schedule or a policy path")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		cfg:      cfg,
		run:      run,
		logger:   logger,
		triggers: make(chan string, 1),
	}, nil
}

// Run blocks until ctx is cancelled. Run errors are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.cfg.Schedule, func() { w.trigger("schedule") }); err != nil {
			return fmt.Errorf("failed to schedule scan: %w", err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		w.logger.Info("scan schedule started", zap.String("schedule", w.cfg.Schedule))
	}

	if w.cfg.PolicyPath != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create fsnotify watcher: %w", err)
		}
		defer fw.Close()
		if err := w.addPaths(fw); err != nil {
			return err
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.watchFiles(ctx, fw)
		}()
		defer wg.Wait()
	}

	if w.cfg.RunOnStart {
		w.trigger("start")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-w.triggers:
			w.logger.Info("scan triggered", zap.String("reason", reason))
			if err := w.run(ctx, reason); err != nil {
				w.logger.Error("scan failed", zap.String("reason", reason), zap.Error(err))
			}
		}
	}
}

// trigger queues a run unless one is already queued.
func (w *Watcher) trigger(reason string) {
	select {
	case w.triggers <- reason:
	default:
	}
}

// addPaths watches the directories holding the policy and packs, so
// editors that save by rename are still seen.
func (w *Watcher) addPaths(fw *fsnotify.Watcher) error {
	if err := fw.Add(filepath.Dir(w.cfg.PolicyPath)); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}
	if w.cfg.PacksDir != "" {
		if err := fw.Add(w.cfg.PacksDir); err != nil {
			// Packs are optional
			w.logger.Debug("packs directory not watched", zap.String("dir", w.cfg.PacksDir), zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) watchFiles(ctx context.Context, fw *fsnotify.Watcher) {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("policy file event", zap.String("path", event.Name), zap.String("op", event.Op.String()))

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.cfg.Debounce, func() { w.trigger("policy changed") })
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether event touches the policy file or a pack.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == filepath.Clean(w.cfg.PolicyPath) {
		return true
	}
	if w.cfg.PacksDir == "" || filepath.Dir(name) != filepath.Clean(w.cfg.PacksDir) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
