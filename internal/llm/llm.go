// Package llm hides the generative-model providers behind a handful of
// small interfaces, one per kind of call the assistant makes.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"gwgp-assistant-backend/internal/config"
)

// ErrUnsupported is returned when a provider cannot serve a call at all.
var ErrUnsupported = errors.New("not supported by provider")

// MaxToolSteps bounds the model/tool round trips in GenerateWithTools.
const MaxToolSteps = 4

// Blob is binary media with its MIME type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Prompt is a single-turn request: system instruction, optional media
// part, then the user text.
type Prompt struct {
	System string
	Text   string
	Media  *Blob
}

// Tool is a function the model may call. Call receives the raw JSON
// arguments and returns a JSON-marshalable result.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Call        func(ctx context.Context, args json.RawMessage) (any, error)
}

type TextModel interface {
	GenerateText(ctx context.Context, p Prompt) (string, error)
}

type ToolModel interface {
	GenerateWithTools(ctx context.Context, p Prompt, tools []Tool) (string, error)
}

// Searcher answers with web-grounded generation where the provider has it.
type Searcher interface {
	Search(ctx context.Context, p Prompt) (string, error)
}

// ImageEditor returns nil when the model produced no image.
type ImageEditor interface {
	EditImage(ctx context.Context, image Blob, instruction string) (*Blob, error)
}

// SpeechSynthesizer returns raw little-endian 16-bit mono PCM at 24 kHz.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// VideoGenerator returns nil when the operation finished without a video.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string) (*Blob, error)
}

// Backend is everything a provider offers.
type Backend interface {
	TextModel
	ToolModel
	Searcher
	ImageEditor
	SpeechSynthesizer
	VideoGenerator
	Name() string
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderGemini, "":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func callTool(ctx context.Context, tools []Tool, name string, args json.RawMessage) (any, error) {
	for _, t := range tools {
		if t.Name == name {
			return t.Call(ctx, args)
		}
	}
	return nil, fmt.Errorf("unknown tool %q", name)
}
