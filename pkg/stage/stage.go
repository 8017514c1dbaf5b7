// Package stage provides the concrete pipeline nodes of audioflow.
//
// Every stage embeds [pipeline.Base] and follows its contract: the stage's
// parameters are bound by its constructor and never change afterwards,
// external executables are resolved once in Setup, and Run validates, gates
// on staleness, works and emits.
//
// Stages that wrap an external tool:
//
//   - [Decode]: mp3 to wav with lame.
//   - [Resample]: wav to wav at a new sample rate with sox.
//   - [Shell]: any command line with {in_file} and {out_file} placeholders.
//   - [OpenSmile]: feature extraction with SMILExtract.
//   - [Praat]: acoustic analysis script whose stdout becomes a csv artifact.
//   - [KaldiASR]: speech recognition with a Kaldi nnet3 online decoder.
//
// Stages computed in-process:
//
//   - [Split]: sample-accurate segmentation, see package segment.
//   - [Transcribe]: hosted transcription through the OpenAI API.
package stage

import (
	"context"
	"fmt"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// execute runs cmd with the node's runner. A process that cannot be started
// or exits nonzero yields an [pipeline.ErrToolFailed] error carrying the
// command line and exit code; detail, if set, extracts extra context from the
// failed result.
func execute(ctx context.Context, b *pipeline.Base, cmd runner.Command, detail func(runner.Result) string) (runner.Result, error) {
	b.Logger().DebugContext(ctx, "exec", "cmd", cmd.String())
	res, err := b.Runner().Run(ctx, cmd)
	if err != nil {
		return res, fmt.Errorf("%w: %v", pipeline.ErrToolFailed, err)
	}
	if !res.Success() {
		var d string
		if detail != nil {
			d = detail(res)
		}
		return res, pipeline.ToolError(cmd.String(), res.ExitCode, d)
	}
	return res, nil
}
