package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNotFound is returned by [LocateFile] and [LocateExecutable] when name
// cannot be found in any candidate location.
var ErrNotFound = errors.New("runner: file not found")

// LocateFile resolves name to an existing regular file. An absolute or
// explicitly relative path (containing a separator) that exists is returned
// as is; otherwise name is looked up in each of dirs in order. Directories
// that are empty strings are ignored.
func LocateFile(name string, dirs ...string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		if isFile(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if isFile(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %v)", ErrNotFound, name, dirs)
}

// LocateExecutable resolves name like [LocateFile] and falls back to the
// $PATH lookup of os/exec.
func LocateExecutable(name string, dirs ...string) (string, error) {
	if p, err := LocateFile(name, dirs...); err == nil {
		return p, nil
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: executable %s: %v", ErrNotFound, name, err)
	}
	return p, nil
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
