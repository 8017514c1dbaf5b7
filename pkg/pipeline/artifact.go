package pipeline

import (
	"path/filepath"
	"strings"
)

// Artifact is a file handed from one node to the next. Path is the primary
// output; Sidecar is an optional auxiliary file (e.g. a segment annotation)
// produced alongside it and is empty when absent.
type Artifact struct {
	Path    string
	Sidecar string
}

// Ext returns the extension of the primary path without the leading dot,
// lower-cased. A path without an extension yields "".
func (a Artifact) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(a.Path), "."))
}

// HasExt reports whether the primary path carries the extension ext. The
// comparison is case-insensitive and ext may include a leading dot.
func (a Artifact) HasExt(ext string) bool {
	return a.Ext() == normalizeExt(ext)
}

func (a Artifact) String() string {
	if a.Sidecar == "" {
		return a.Path
	}
	return a.Path + " (+" + a.Sidecar + ")"
}
