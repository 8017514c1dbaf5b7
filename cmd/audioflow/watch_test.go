package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

// testWatcher returns a dirWatcher over a real fsnotify watcher whose clock
// is fixed at now and whose processed batches are appended to batches.
func testWatcher(t *testing.T, outDirs map[string]string, now time.Time, batches *[][]string) *dirWatcher {
	t.Helper()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = fsw.Close() })
	w := newDirWatcher(fsw,
		func() map[string]string { return outDirs },
		func(_ context.Context, paths []string) { *batches = append(*batches, paths) },
	)
	w.now = func() time.Time { return now }
	return w
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDirWatcher_Ignored(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "out")
	w := testWatcher(t, map[string]string{"decode": out}, time.Now(), new([][]string))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"input file", filepath.Join(root, "talk.mp3"), false},
		{"nested input", filepath.Join(root, "day1", "talk.mp3"), false},
		{"hidden file", filepath.Join(root, ".talk.mp3.part"), true},
		{"hidden directory", filepath.Join(root, ".cache"), true},
		{"output directory", out, true},
		{"file in output directory", filepath.Join(out, "talk.wav"), true},
		{"sibling sharing the prefix", filepath.Join(root, "outtakes", "talk.mp3"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.ignored(tt.path); got != tt.want {
				t.Errorf("ignored(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDirWatcher_Handle(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		file    string
		create  bool
		op      fsnotify.Op
		pending bool
	}{
		{"create", "talk.mp3", true, fsnotify.Create, true},
		{"write", "talk.mp3", true, fsnotify.Write, true},
		{"create and write", "talk.mp3", true, fsnotify.Create | fsnotify.Write, true},
		{"chmod only", "talk.mp3", true, fsnotify.Chmod, false},
		{"remove", "talk.mp3", false, fsnotify.Remove, false},
		{"rename", "talk.mp3", false, fsnotify.Rename, false},
		{"vanished before stat", "gone.mp3", false, fsnotify.Create, false},
		{"hidden partial upload", ".talk.mp3.part", true, fsnotify.Create, false},
		{"stage output", filepath.Join("out", "talk.wav"), true, fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			w := testWatcher(t, map[string]string{"decode": filepath.Join(root, "out")}, now, new([][]string))
			path := filepath.Join(root, tt.file)
			if tt.create {
				touch(t, path)
			}

			w.handle(fsnotify.Event{Name: path, Op: tt.op})

			last, ok := w.pending[path]
			if ok != tt.pending {
				t.Fatalf("pending = %v, want %v", ok, tt.pending)
			}
			if ok && !last.Equal(now) {
				t.Errorf("pending since %v, want %v", last, now)
			}
			if !tt.pending && len(w.pending) != 0 {
				t.Errorf("unexpected pending files: %v", w.pending)
			}
		})
	}
}

func TestDirWatcher_FlushWaitsForSettleAndSorts(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var batches [][]string
	w := testWatcher(t, nil, t0, &batches)
	w.pending = map[string]time.Time{
		"/in/c.mp3": t0,
		"/in/a.mp3": t0,
		"/in/b.mp3": t0.Add(300 * time.Millisecond),
		"/in/d.mp3": t0.Add(-time.Second),
	}
	ctx := context.Background()

	w.flush(ctx, t0.Add(settleDelay-time.Millisecond))
	w.flush(ctx, t0.Add(settleDelay))
	w.flush(ctx, t0.Add(settleDelay+100*time.Millisecond))
	w.flush(ctx, t0.Add(settleDelay+300*time.Millisecond))

	want := [][]string{
		{"/in/d.mp3"},
		{"/in/a.mp3", "/in/c.mp3"},
		{"/in/b.mp3"},
	}
	if diff := cmp.Diff(want, batches); diff != "" {
		t.Errorf("processed batches mismatch (-want +got):\n%s", diff)
	}
	if len(w.pending) != 0 {
		t.Errorf("files left pending: %v", w.pending)
	}
}

func TestDirWatcher_WatchesNewSubdirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(filepath.Join(out, "decode"), 0o755); err != nil {
		t.Fatal(err)
	}
	w := testWatcher(t, map[string]string{"decode": out}, time.Now(), new([][]string))
	if err := w.addTree(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day := filepath.Join(root, "day1")
	deep := filepath.Join(day, "morning")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	w.handle(fsnotify.Event{Name: day, Op: fsnotify.Create})

	got := w.fsw.WatchList()
	slices.Sort(got)
	want := []string{root, day, deep}
	slices.Sort(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("watched directories mismatch (-want +got):\n%s", diff)
	}
	if len(w.pending) != 0 {
		t.Errorf("directory queued as input: %v", w.pending)
	}
}
