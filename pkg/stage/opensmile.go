package stage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// openSMILE output flags.
const (
	// FlagCSV writes one feature vector per input file.
	FlagCSV = "-csvoutput"

	// FlagLLDCSV writes frame-level low-level descriptors.
	FlagLLDCSV = "-lldcsvoutput"
)

// DefaultSmileFlags are appended to every SMILExtract invocation unless
// overridden.
const DefaultSmileFlags = "-nologfile -noconsoleoutput -appendcsv 0"

// SmilePreset is a named openSMILE configuration.
type SmilePreset struct {
	Config  string
	OutFlag string
}

// SmilePresets maps preset names to openSMILE configurations.
var SmilePresets = map[string]SmilePreset{
	"is10_paraling":     {Config: "IS10_paraling.conf", OutFlag: FlagCSV},
	"is10_paraling_lld": {Config: "IS10_paraling.conf", OutFlag: FlagLLDCSV},
}

// OpenSmileConfig holds the parameters of an [OpenSmile] stage.
type OpenSmileConfig struct {
	// Home is the openSMILE installation directory. Configuration files
	// given by bare name are looked up in Home/config, and SMILExtract in
	// Home, Home/bin and Home/bin/linux_x64_standalone_static before $PATH.
	Home string

	// Config is an absolute path to a configuration file or the name of one
	// inside Home/config.
	Config string

	// OutFlag selects the output kind; defaults to [FlagCSV].
	OutFlag string

	// ExtraFlags are appended to the command line; defaults to
	// [DefaultSmileFlags]. Split with shell quoting rules.
	ExtraFlags string

	// OutExt is the output extension; defaults to "csv".
	OutExt string
}

// OpenSmile extracts acoustic features with SMILExtract.
type OpenSmile struct {
	pipeline.Base
	cfg   OpenSmileConfig
	extra []string
	conf  string
	exe   string
}

var _ pipeline.Node = (*OpenSmile)(nil)

// NewOpenSmile returns an OpenSmile stage.
func NewOpenSmile(name string, cfg OpenSmileConfig) (*OpenSmile, error) {
	if cfg.Config == "" {
		return nil, fmt.Errorf("stage %q: openSMILE config is required", name)
	}
	if cfg.OutFlag == "" {
		cfg.OutFlag = FlagCSV
	}
	if cfg.ExtraFlags == "" {
		cfg.ExtraFlags = DefaultSmileFlags
	}
	if cfg.OutExt == "" {
		cfg.OutExt = "csv"
	}
	cfg.OutExt = strings.TrimPrefix(cfg.OutExt, ".")

	extra, err := shellquote.Split(cfg.ExtraFlags)
	if err != nil {
		return nil, fmt.Errorf("stage %q: extra flags: %w", name, err)
	}
	return &OpenSmile{Base: pipeline.NewBase(name), cfg: cfg, extra: extra}, nil
}

// NewSmilePreset returns an OpenSmile stage for a named entry of
// [SmilePresets].
func NewSmilePreset(name, preset, home string) (*OpenSmile, error) {
	p, ok := SmilePresets[preset]
	if !ok {
		return nil, fmt.Errorf("stage %q: unknown openSMILE preset %q", name, preset)
	}
	return NewOpenSmile(name, OpenSmileConfig{Home: home, Config: p.Config, OutFlag: p.OutFlag})
}

// Setup implements [pipeline.Node].
func (s *OpenSmile) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	var confDirs, exeDirs []string
	if h := s.cfg.Home; h != "" {
		confDirs = []string{filepath.Join(h, "config")}
		exeDirs = []string{h, filepath.Join(h, "bin"), filepath.Join(h, "bin", "linux_x64_standalone_static")}
	}
	conf, err := runner.LocateFile(s.cfg.Config, confDirs...)
	if err != nil {
		return fmt.Errorf("stage %q: config: %w", s.Name(), err)
	}
	exe, err := runner.LocateExecutable("SMILExtract", exeDirs...)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.conf, s.exe = conf, exe
	return nil
}

// Run implements [pipeline.Node].
func (s *OpenSmile) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "wav",
		Produce: s.cfg.OutExt,
		Work: func(ctx context.Context, in, out string) error {
			args := []string{"-C", s.conf, "-I", in, s.cfg.OutFlag, out}
			args = append(args, s.extra...)
			_, err := execute(ctx, &s.Base, runner.Command{Path: s.exe, Args: args}, nil)
			return err
		},
	})
}
