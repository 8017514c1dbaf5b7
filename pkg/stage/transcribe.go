package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Transcribe writes the transcription of each input to a txt artifact.
type Transcribe struct {
	pipeline.Base
	t Transcriber
}

var _ pipeline.Node = (*Transcribe)(nil)

// NewTranscribe returns a Transcribe stage backed by t.
func NewTranscribe(name string, t Transcriber) (*Transcribe, error) {
	if t == nil {
		return nil, fmt.Errorf("stage %q: transcriber is required", name)
	}
	return &Transcribe{Base: pipeline.NewBase(name), t: t}, nil
}

// Run implements [pipeline.Node].
func (s *Transcribe) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "wav",
		Produce: "txt",
		Work: func(ctx context.Context, in, out string) error {
			text, err := s.t.Transcribe(ctx, in)
			if err != nil {
				return err
			}
			return os.WriteFile(out, []byte(text), 0o644)
		},
	})
}

// DefaultOpenAIModel is the transcription model used when none is configured.
const DefaultOpenAIModel = "whisper-1"

// OpenAITranscriber transcribes audio through the OpenAI audio API.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

var _ Transcriber = (*OpenAITranscriber)(nil)

// NewOpenAITranscriber returns a transcriber authenticated with apiKey.
// baseURL overrides the API endpoint when non-empty.
func NewOpenAITranscriber(apiKey, model, baseURL string) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAITranscriber{client: openai.NewClient(opts...), model: model}, nil
}

// Transcribe implements [Transcriber].
func (o *OpenAITranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai transcription: %v", pipeline.ErrToolFailed, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
