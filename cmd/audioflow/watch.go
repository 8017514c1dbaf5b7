package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/MrWong99/audioflow/internal/config"
)

// settleDelay is how long a file must stay unmodified before it is
// processed, so that files still being copied in are not picked up early.
const settleDelay = 500 * time.Millisecond

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process a directory, then every file created or rewritten in it",
		Long: `watch processes every file already in <dir>, then keeps watching the
directory tree and processes new or rewritten files one at a time until
interrupted. With --reload the pipeline is rebuilt whenever the
configuration file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer env.close()
			return watch(cmd.Context(), env, flags.configPath, args[0], reload)
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "rebuild the pipeline when the configuration file changes")
	return cmd
}

func watch(ctx context.Context, e *env, configPath, dir string, reload bool) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	w := newDirWatcher(fsw,
		func() map[string]string { return e.app.OutDirs() },
		func(ctx context.Context, paths []string) { e.app.Run(ctx, paths) },
	)
	if err := w.addTree(dir); err != nil {
		return err
	}

	configs := make(chan *config.Config, 1)
	if reload {
		cw, err := config.NewWatcher(configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				e.level.Set(d.NewLogLevel.Level())
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if !d.RebuildRequired() {
				return
			}
			slog.Info("pipeline configuration changed",
				"added", d.Added, "removed", d.Removed, "changed", d.Changed, "tools_changed", d.ToolsChanged)
			select {
			case <-configs:
			default:
			}
			configs <- new
		})
		if err != nil {
			return err
		}
		defer cw.Stop()
	}

	inputs, err := e.app.Inputs([]string{dir})
	if err != nil {
		return err
	}
	rep := e.app.Run(ctx, inputs)
	slog.Info("initial pass complete", "inputs", len(rep.Results), "failed", len(rep.Failed()))
	slog.Info("watching", "dir", dir)

	tick := time.NewTicker(settleDelay / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			e.app.WriteMetrics()
			slog.Info("watch stopped")
			return nil
		case cfg := <-configs:
			a, err := e.build(cfg)
			if err != nil {
				slog.Error("keeping previous pipeline, new configuration does not assemble", "err", err)
				continue
			}
			e.app, e.cfg = a, cfg
			w.skip = nil
			slog.Info("pipeline rebuilt")
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", "err", err)
		case now := <-tick.C:
			w.flush(ctx, now)
		}
	}
}

// dirWatcher tracks files that changed under the watched tree and feeds
// them to the pipeline once they have settled.
type dirWatcher struct {
	fsw     *fsnotify.Watcher
	pending map[string]time.Time
	skip    map[string]bool

	// outputs returns the stage output directories of the current pipeline.
	outputs func() map[string]string
	process func(ctx context.Context, paths []string)
	now     func() time.Time
}

func newDirWatcher(fsw *fsnotify.Watcher, outputs func() map[string]string, process func(context.Context, []string)) *dirWatcher {
	return &dirWatcher{
		fsw:     fsw,
		pending: make(map[string]time.Time),
		outputs: outputs,
		process: process,
		now:     time.Now,
	}
}

func (w *dirWatcher) outDirs() map[string]bool {
	if w.skip == nil {
		w.skip = make(map[string]bool)
		for _, d := range w.outputs() {
			if abs, err := filepath.Abs(d); err == nil {
				w.skip[abs] = true
			}
		}
	}
	return w.skip
}

func (w *dirWatcher) ignored(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	for d := range w.outDirs() {
		if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches dir and every subdirectory that is not a stage output.
func (w *dirWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %q: %w", path, err)
		}
		return nil
	})
}

func (w *dirWatcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || w.ignored(ev.Name) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addTree(ev.Name); err != nil {
			slog.Warn("watch: cannot watch new directory", "dir", ev.Name, "err", err)
		}
		return
	}
	if info.Mode().IsRegular() {
		w.pending[ev.Name] = w.now()
	}
}

// flush processes, in name order, every pending file that has not changed
// for settleDelay.
func (w *dirWatcher) flush(ctx context.Context, now time.Time) {
	var ready []string
	for p, last := range w.pending {
		if now.Sub(last) >= settleDelay {
			ready = append(ready, p)
		}
	}
	if len(ready) == 0 {
		return
	}
	for _, p := range ready {
		delete(w.pending, p)
	}
	slices.Sort(ready)
	w.process(ctx, ready)
}
