package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// ShouldRun reports whether outputPath must be (re)computed from inputPath.
// It returns true when the output does not exist or when the input was
// modified strictly after the output. An input that cannot be stat'ed also
// yields true so the stage's own work reports the problem.
func ShouldRun(inputPath, outputPath string) bool {
	out, err := os.Stat(outputPath)
	if err != nil {
		return true
	}
	in, err := os.Stat(inputPath)
	if err != nil {
		return true
	}
	return in.ModTime().After(out.ModTime())
}

// DerivePath returns the output path for inputPath inside outDir: the input's
// base name with its final extension replaced by ext. It is a pure function;
// ext may be given with or without a leading dot.
func DerivePath(outDir, inputPath, ext string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+"."+normalizeExt(ext))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
