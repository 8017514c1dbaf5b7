package runner_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/audioflow/pkg/runner"
)

func TestTemplateExpand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		program string
		vars    map[string]string
		want    runner.Command
	}{
		{
			name: "simple",
			raw:  "ffmpeg -y -i {in_file} {out_file}",
			vars: map[string]string{"in_file": "a.mp3", "out_file": "b.wav"},
			want: runner.Command{Path: "ffmpeg", Args: []string{"-y", "-i", "a.mp3", "b.wav"}},
		},
		{
			name: "values with spaces stay one word",
			raw:  "cp {in_file} {out_file}",
			vars: map[string]string{"in_file": "my talk.wav", "out_file": "out dir/x.wav"},
			want: runner.Command{Path: "cp", Args: []string{"my talk.wav", "out dir/x.wav"}},
		},
		{
			name: "quoted words and embedded placeholders",
			raw:  `sox {in_file} "--comment=made by sox" out={out_file}`,
			vars: map[string]string{"in_file": "a.wav", "out_file": "b.wav"},
			want: runner.Command{Path: "sox", Args: []string{"a.wav", "--comment=made by sox", "out=b.wav"}},
		},
		{
			name:    "program override",
			raw:     "praat --run {in_file}",
			program: "/opt/praat/praat",
			vars:    map[string]string{"in_file": "x.wav"},
			want:    runner.Command{Path: "/opt/praat/praat", Args: []string{"--run", "x.wav"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tmpl, err := runner.ParseTemplate(tt.raw)
			if err != nil {
				t.Fatalf("ParseTemplate: %v", err)
			}
			got := tmpl.Expand(tt.program, tt.vars)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Expand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	t.Parallel()
	if _, err := runner.ParseTemplate("   "); !errors.Is(err, runner.ErrEmptyTemplate) {
		t.Errorf("blank template: err = %v, want ErrEmptyTemplate", err)
	}
	if _, err := runner.ParseTemplate(`echo "unterminated`); err == nil {
		t.Error("unterminated quote: expected error")
	}
}

func TestTemplateUses(t *testing.T) {
	t.Parallel()
	tmpl, err := runner.ParseTemplate("tool {in_file} > {out_file}")
	if err != nil {
		t.Fatal(err)
	}
	if !tmpl.Uses("in_file") || !tmpl.Uses("out_file") {
		t.Error("Uses should report both placeholders")
	}
	if tmpl.Uses("sample_rate") {
		t.Error("Uses(sample_rate) = true")
	}
	if tmpl.Program() != "tool" {
		t.Errorf("Program = %q, want tool", tmpl.Program())
	}
}
