package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// UtteranceID is the utterance key passed to the Kaldi decoder. The decoder
// echoes it in front of the hypothesis.
const UtteranceID = "utterance-id1"

// KaldiConfig holds the decoder hyperparameters of a [KaldiASR] stage.
type KaldiConfig struct {
	// Home is the Kaldi source tree.
	Home string

	// ModelDir holds final.mdl, conf/online.conf and graph_pp/. Defaults to
	// the ASpIRE chain model under Home.
	ModelDir string

	FrameSubsamplingFactor int
	MaxActive              int
	Beam                   float64
	LatticeBeam            float64
	AcousticScale          float64
}

// DefaultKaldiConfig returns the ASpIRE chain model settings for home.
func DefaultKaldiConfig(home string) KaldiConfig {
	return KaldiConfig{
		Home:                   home,
		FrameSubsamplingFactor: 3,
		MaxActive:              7000,
		Beam:                   15.0,
		LatticeBeam:            6.0,
		AcousticScale:          1.0,
	}
}

// KaldiASR transcribes wav files with Kaldi's online2-wav-nnet3-latgen-faster
// in offline mode and writes the best hypothesis to a txt artifact.
type KaldiASR struct {
	pipeline.Base
	cfg  KaldiConfig
	exe  string
	args []string
}

var _ pipeline.Node = (*KaldiASR)(nil)

// NewKaldiASR returns a KaldiASR stage.
func NewKaldiASR(name string, cfg KaldiConfig) (*KaldiASR, error) {
	if cfg.Home == "" {
		return nil, fmt.Errorf("stage %q: kaldi home is required", name)
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = filepath.Join(cfg.Home, "egs", "aspire", "s5", "exp", "tdnn_7b_chain_online")
	}
	return &KaldiASR{Base: pipeline.NewBase(name), cfg: cfg}, nil
}

// Setup implements [pipeline.Node].
func (s *KaldiASR) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	exe, err := runner.LocateFile(filepath.Join(s.cfg.Home, "src", "online2bin", "online2-wav-nnet3-latgen-faster"))
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.exe = exe

	m := s.cfg.ModelDir
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	s.args = []string{
		"--online=false",
		"--do-endpointing=false",
		"--frame-subsampling-factor=" + strconv.Itoa(s.cfg.FrameSubsamplingFactor),
		"--config=" + filepath.Join(m, "conf", "online.conf"),
		"--max-active=" + strconv.Itoa(s.cfg.MaxActive),
		"--beam=" + f(s.cfg.Beam),
		"--lattice-beam=" + f(s.cfg.LatticeBeam),
		"--acoustic-scale=" + f(s.cfg.AcousticScale),
		"--word-symbol-table=" + filepath.Join(m, "graph_pp", "words.txt"),
		filepath.Join(m, "final.mdl"),
		filepath.Join(m, "graph_pp", "HCLG.fst"),
		"ark:echo " + UtteranceID + " " + UtteranceID + "|",
	}
	return nil
}

// Run implements [pipeline.Node].
func (s *KaldiASR) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "wav",
		Produce: "txt",
		Work: func(ctx context.Context, in, out string) error {
			abs, err := filepath.Abs(in)
			if err != nil {
				return err
			}
			// Kaldi runs rspecifier pipes through sh, so the path is quoted.
			args := append(append([]string(nil), s.args...),
				"scp:echo "+UtteranceID+" "+shellquote.Join(abs)+" |",
				"ark:/dev/null",
			)
			res, err := execute(ctx, &s.Base, runner.Command{Path: s.exe, Args: args}, func(r runner.Result) string {
				return strings.Join(ErrorLines(r.Stderr), "\n\t")
			})
			if err != nil {
				return err
			}
			hyp, err := ParseHypothesis(res.Stderr, UtteranceID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(hyp), 0o644); err != nil {
				return fmt.Errorf("write hypothesis: %w", err)
			}
			return nil
		},
	})
}
