package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Inputs expands paths into the list of files to process. Files are taken
// as given; directories are walked recursively in lexical order. Hidden
// entries and the stages' own output directories are skipped, so a run over
// a tree that contains the output root does not feed outputs back in.
func (a *App) Inputs(paths []string) ([]string, error) {
	skip := make(map[string]bool, len(a.outDirs))
	for _, d := range a.outDirs {
		if abs, err := filepath.Abs(d); err == nil {
			skip[abs] = true
		}
	}
	return CollectInputs(paths, skip)
}

// CollectInputs expands paths like [App.Inputs], skipping the absolute
// directories in skip.
func CollectInputs(paths []string, skip map[string]bool) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("app: input: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if abs, err := filepath.Abs(path); err == nil && skip[abs] {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("app: walk %q: %w", p, err)
		}
	}
	return out, nil
}
