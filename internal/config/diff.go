package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ToolsChanged is true if any tool location, output_root or
	// metrics_file changed.
	ToolsChanged bool

	// Stage names that were added, removed, or changed in kind, options,
	// output directory or position in the tree.
	Added   []string
	Removed []string
	Changed []string
}

// RebuildRequired reports whether the pipeline has to be reassembled to
// apply the new config. A log level change alone can be applied in place.
func (d ConfigDiff) RebuildRequired() bool {
	return d.ToolsChanged || len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Tools != new.Tools || old.OutputRoot != new.OutputRoot || old.MetricsFile != new.MetricsFile {
		d.ToolsChanged = true
	}

	oldStages := flatten(old.Stages)
	newStages := flatten(new.Stages)

	// Walk in declaration order so the name lists are deterministic.
	Walk(old.Stages, func(_ []string, s StageConfig) {
		n, ok := newStages[s.Name]
		switch {
		case !ok:
			d.Removed = append(d.Removed, s.Name)
		case !sameStage(oldStages[s.Name], n):
			d.Changed = append(d.Changed, s.Name)
		}
	})
	Walk(new.Stages, func(_ []string, s StageConfig) {
		if _, ok := oldStages[s.Name]; !ok {
			d.Added = append(d.Added, s.Name)
		}
	})

	return d
}

type flatStage struct {
	parent string
	cfg    StageConfig
	next   []string
}

func flatten(stages []StageConfig) map[string]flatStage {
	m := make(map[string]flatStage)
	Walk(stages, func(path []string, s StageConfig) {
		fs := flatStage{cfg: s}
		if len(path) > 0 {
			fs.parent = path[len(path)-1]
		}
		for _, n := range s.Next {
			fs.next = append(fs.next, n.Name)
		}
		m[s.Name] = fs
	})
	return m
}

func sameStage(a, b flatStage) bool {
	return a.parent == b.parent &&
		a.cfg.Kind == b.cfg.Kind &&
		a.cfg.OutDir == b.cfg.OutDir &&
		reflect.DeepEqual(a.cfg.Options, b.cfg.Options) &&
		reflect.DeepEqual(a.next, b.next)
}
