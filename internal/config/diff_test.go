package config_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/audioflow/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestDiff(t *testing.T) {
	t.Parallel()
	base := mustLoad(t, validYAML)

	tests := []struct {
		name    string
		edit    func(string) string
		want    config.ConfigDiff
		rebuild bool
	}{
		{
			name: "identical",
			edit: func(s string) string { return s },
		},
		{
			name: "log level only",
			edit: func(s string) string { return strings.Replace(s, "log_level: debug", "log_level: warn", 1) },
			want: config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogWarn},
		},
		{
			name:    "tool location",
			edit:    func(s string) string { return strings.Replace(s, "/usr/local/bin/lame", "/opt/lame", 1) },
			want:    config.ConfigDiff{ToolsChanged: true},
			rebuild: true,
		},
		{
			name:    "options",
			edit:    func(s string) string { return strings.Replace(s, "16000", "8000", 1) },
			want:    config.ConfigDiff{Changed: []string{"resample"}},
			rebuild: true,
		},
		{
			name:    "removed leaf",
			edit:    func(s string) string { return s[:strings.Index(s, "          - name: words")] },
			want:    config.ConfigDiff{Changed: []string{"resample"}, Removed: []string{"words"}},
			rebuild: true,
		},
		{
			name: "added leaf",
			edit: func(s string) string {
				return s + "          - name: praat\n            kind: praat\n"
			},
			want:    config.ConfigDiff{Changed: []string{"resample"}, Added: []string{"praat"}},
			rebuild: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := config.Diff(base, mustLoad(t, tt.edit(validYAML)))
			if diff := cmp.Diff(tt.want, d); diff != "" {
				t.Errorf("diff mismatch (-want +got):\n%s", diff)
			}
			if d.RebuildRequired() != tt.rebuild {
				t.Errorf("RebuildRequired: got %v, want %v", d.RebuildRequired(), tt.rebuild)
			}
		})
	}
}
