package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/audioflow/internal/config"
	"github.com/MrWong99/audioflow/pkg/audio"
	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
	"github.com/MrWong99/audioflow/pkg/segment"
	"github.com/MrWong99/audioflow/pkg/stage"
)

// Built-in stage kinds.
const (
	KindMP3ToWAV         = "mp3_to_wav"
	KindResampleWAV      = "resample_wav"
	KindShell            = "shell"
	KindOpenSmile        = "opensmile"
	KindPraat            = "praat"
	KindKaldiASR         = "kaldi_asr"
	KindSplitSegments    = "split_segments"
	KindOpenAITranscribe = "openai_transcribe"
)

// RegisterBuiltins registers every built-in stage kind with reg.
func RegisterBuiltins(reg *config.Registry) {
	reg.Register(KindMP3ToWAV, newDecode)
	reg.Register(KindResampleWAV, newResample)
	reg.Register(KindShell, newShell)
	reg.Register(KindOpenSmile, newOpenSmile)
	reg.Register(KindPraat, newPraat)
	reg.Register(KindKaldiASR, newKaldiASR)
	reg.Register(KindSplitSegments, newSplit)
	reg.Register(KindOpenAITranscribe, newTranscribe)
}

// DefaultRegistry returns a registry holding the built-in stage kinds.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

func newDecode(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	if err := sc.DecodeOptions(&struct{}{}); err != nil {
		return nil, err
	}
	return stage.NewDecode(sc.Name, tools.Lame), nil
}

type resampleOptions struct {
	SampleRate int `yaml:"sample_rate"`
}

func newResample(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	var opts resampleOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return stage.NewResample(sc.Name, opts.SampleRate, tools.Sox)
}

type shellOptions struct {
	Command string `yaml:"command"`
	Ext     string `yaml:"ext"`
	Accept  string `yaml:"accept"`
}

func newShell(sc config.StageConfig, _ config.Tools) (pipeline.Node, error) {
	var opts shellOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return stage.NewShell(sc.Name, opts.Command, opts.Ext, opts.Accept)
}

type openSmileOptions struct {
	// Preset selects one of [stage.SmilePresets]; mutually exclusive with Config.
	Preset     string `yaml:"preset"`
	Config     string `yaml:"config"`
	OutFlag    string `yaml:"out_flag"`
	ExtraFlags string `yaml:"extra_flags"`
	OutExt     string `yaml:"out_ext"`
}

func newOpenSmile(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	var opts openSmileOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	switch {
	case opts.Preset != "" && opts.Config != "":
		return nil, errors.New("options preset and config are mutually exclusive")
	case opts.Preset != "":
		return stage.NewSmilePreset(sc.Name, opts.Preset, tools.OpenSmileHome)
	}
	return stage.NewOpenSmile(sc.Name, stage.OpenSmileConfig{
		Home:       tools.OpenSmileHome,
		Config:     opts.Config,
		OutFlag:    opts.OutFlag,
		ExtraFlags: opts.ExtraFlags,
		OutExt:     opts.OutExt,
	})
}

type praatOptions struct {
	Script string `yaml:"script"`
}

func newPraat(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	var opts praatOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return stage.NewPraat(sc.Name, tools.Praat, opts.Script), nil
}

type kaldiOptions struct {
	ModelDir               string  `yaml:"model_dir"`
	FrameSubsamplingFactor int     `yaml:"frame_subsampling_factor"`
	MaxActive              int     `yaml:"max_active"`
	Beam                   float64 `yaml:"beam"`
	LatticeBeam            float64 `yaml:"lattice_beam"`
	AcousticScale          float64 `yaml:"acoustic_scale"`
}

func newKaldiASR(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	var opts kaldiOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	cfg := stage.DefaultKaldiConfig(tools.KaldiHome)
	cfg.ModelDir = opts.ModelDir
	if opts.FrameSubsamplingFactor > 0 {
		cfg.FrameSubsamplingFactor = opts.FrameSubsamplingFactor
	}
	if opts.MaxActive > 0 {
		cfg.MaxActive = opts.MaxActive
	}
	if opts.Beam > 0 {
		cfg.Beam = opts.Beam
	}
	if opts.LatticeBeam > 0 {
		cfg.LatticeBeam = opts.LatticeBeam
	}
	if opts.AcousticScale > 0 {
		cfg.AcousticScale = opts.AcousticScale
	}
	return stage.NewKaldiASR(sc.Name, cfg)
}

// Segment mappers selectable by the split_segments stage.
const (
	MapperWindow  = "window"
	MapperEnergy  = "energy"
	MapperList    = "list"
	MapperCommand = "command"
)

type splitOptions struct {
	Mapper  string `yaml:"mapper"`
	Channel string `yaml:"channel"`

	// window
	Length time.Duration `yaml:"length"`
	Hop    time.Duration `yaml:"hop"`

	// energy
	Frame       time.Duration `yaml:"frame"`
	ThresholdDB *float64      `yaml:"threshold_db"`
	MinSilence  time.Duration `yaml:"min_silence"`
	MinSpeech   time.Duration `yaml:"min_speech"`
	Padding     time.Duration `yaml:"padding"`

	// list
	ListDir string `yaml:"list_dir"`
	ListExt string `yaml:"list_ext"`

	// command
	Command string `yaml:"command"`
}

func newSplit(sc config.StageConfig, _ config.Tools) (pipeline.Node, error) {
	var opts splitOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	mode, err := audio.ParseChannelMode(opts.Channel)
	if err != nil {
		return nil, err
	}

	var mapper segment.Mapper
	switch opts.Mapper {
	case MapperWindow:
		if opts.Length <= 0 {
			return nil, errors.New("window mapper: length is required")
		}
		mapper = segment.Window{Length: opts.Length, Hop: opts.Hop}
	case MapperEnergy:
		e := segment.Energy{
			Frame:       opts.Frame,
			ThresholdDB: opts.ThresholdDB,
			MinSilence:  opts.MinSilence,
			MinSpeech:   opts.MinSpeech,
			Padding:     opts.Padding,
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		mapper = e
	case MapperList, "":
		mapper = segment.List{Dir: opts.ListDir, Ext: opts.ListExt}
	case MapperCommand:
		tmpl, err := runner.ParseTemplate(opts.Command)
		if err != nil {
			return nil, fmt.Errorf("command mapper: %w", err)
		}
		if !tmpl.Uses("in_file") {
			return nil, errors.New("command mapper: command must use {in_file}")
		}
		mapper = &segment.Command{Template: tmpl}
	default:
		return nil, fmt.Errorf("unknown segment mapper %q; valid values: window, energy, list, command", opts.Mapper)
	}
	return stage.NewSplit(sc.Name, mapper, mode)
}

type transcribeOptions struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

func newTranscribe(sc config.StageConfig, tools config.Tools) (pipeline.Node, error) {
	var opts transcribeOptions
	if err := sc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	t, err := stage.NewOpenAITranscriber(tools.OpenAIAPIKey, opts.Model, opts.BaseURL)
	if err != nil {
		return nil, err
	}
	return stage.NewTranscribe(sc.Name, t)
}
