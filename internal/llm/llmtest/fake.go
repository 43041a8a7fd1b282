// Package llmtest provides a scripted llm.Backend for tests.
package llmtest

import (
	"context"
	"sync"

	"gwgp-assistant-backend/internal/llm"
)

// Fake answers every call from its fields and counts the calls.
// Set Gate to hold GenerateText until the channel is closed.
type Fake struct {
	Text    string
	TextErr error
	Gate    chan struct{}

	// CallTools makes GenerateWithTools invoke every tool once with
	// ToolArgs before answering with ToolText.
	CallTools bool
	ToolArgs  string
	ToolText  string
	ToolErr   error

	SearchText string
	SearchErr  error

	Image    *llm.Blob
	ImageErr error

	PCM       []byte
	SpeechErr error

	Video    *llm.Blob
	VideoErr error

	mu      sync.Mutex
	calls   map[string]int
	prompts []llm.Prompt
	outputs []any
}

var _ llm.Backend = (*Fake)(nil)

func (f *Fake) Name() string { return "fake" }

func (f *Fake) record(name string, p llm.Prompt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	f.prompts = append(f.prompts, p)
}

// Calls reports how many times the named method ran.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls counts every upstream call.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Fake) Prompts() []llm.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Prompt(nil), f.prompts...)
}

// ToolOutputs returns what the tools returned during GenerateWithTools.
func (f *Fake) ToolOutputs() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.outputs...)
}

func (f *Fake) GenerateText(ctx context.Context, p llm.Prompt) (string, error) {
	f.record("GenerateText", p)
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.Text, f.TextErr
}

func (f *Fake) GenerateWithTools(ctx context.Context, p llm.Prompt, tools []llm.Tool) (string, error) {
	f.record("GenerateWithTools", p)
	if f.ToolErr != nil {
		return "", f.ToolErr
	}
	if f.CallTools {
		args := f.ToolArgs
		if args == "" {
			args = "{}"
		}
		for _, t := range tools {
			out, err := t.Call(ctx, []byte(args))
			if err != nil {
				return "", err
			}
			f.mu.Lock()
			f.outputs = append(f.outputs, out)
			f.mu.Unlock()
		}
	}
	return f.ToolText, nil
}

func (f *Fake) Search(_ context.Context, p llm.Prompt) (string, error) {
	f.record("Search", p)
	return f.SearchText, f.SearchErr
}

func (f *Fake) EditImage(_ context.Context, image llm.Blob, instruction string) (*llm.Blob, error) {
	f.record("EditImage", llm.Prompt{Text: instruction, Media: &image})
	return f.Image, f.ImageErr
}

func (f *Fake) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	f.record("SynthesizeSpeech", llm.Prompt{Text: text})
	return f.PCM, f.SpeechErr
}

func (f *Fake) GenerateVideo(_ context.Context, prompt string) (*llm.Blob, error) {
	f.record("GenerateVideo", llm.Prompt{Text: prompt})
	return f.Video, f.VideoErr
}
