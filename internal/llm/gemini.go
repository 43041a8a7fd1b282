package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"gwgp-assistant-backend/internal/config"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client       *genai.Client
	textModel    string
	imageModel   string
	ttsModel     string
	ttsVoice     string
	videoModel   string
	pollInterval time.Duration
}

func NewGemini(ctx context.Context, cfg config.Config) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return NewGeminiWithClient(client, cfg), nil
}

func NewGeminiWithClient(client *genai.Client, cfg config.Config) *Gemini {
	poll := cfg.VideoPollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &Gemini{
		client:       client,
		textModel:    cfg.GeminiTextModel,
		imageModel:   cfg.GeminiImageModel,
		ttsModel:     cfg.GeminiTTSModel,
		ttsVoice:     cfg.GeminiTTSVoice,
		videoModel:   cfg.GeminiVideoModel,
		pollInterval: poll,
	}
}

func (g *Gemini) Name() string { return config.ProviderGemini }

func (g *Gemini) GenerateText(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, geminiContents(p), &genai.GenerateContentConfig{
		SystemInstruction: geminiSystem(p.System),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// GenerateWithTools runs the function-calling loop. After MaxToolSteps
// round trips it returns whatever text the last response carried.
func (g *Gemini) GenerateWithTools(ctx context.Context, p Prompt, tools []Tool) (string, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: geminiSystem(p.System),
		Tools:             []*genai.Tool{{FunctionDeclarations: decls}},
	}

	history := geminiContents(p)
	var text string
	for step := 0; step < MaxToolSteps; step++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.textModel, history, cfg)
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		text = resp.Text()
		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return text, nil
		}
		history = append(history, resp.Candidates[0].Content)

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			args, err := json.Marshal(call.Args)
			if err != nil {
				return "", fmt.Errorf("encode %s args: %w", call.Name, err)
			}
			result := map[string]any{}
			out, err := callTool(ctx, tools, call.Name, args)
			if err != nil {
				result["error"] = err.Error()
			} else {
				result["output"] = out
			}
			part := genai.NewPartFromFunctionResponse(call.Name, result)
			part.FunctionResponse.ID = call.ID
			parts = append(parts, part)
		}
		history = append(history, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	return text, nil
}

func (g *Gemini) Search(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, geminiContents(p), &genai.GenerateContentConfig{
		SystemInstruction: geminiSystem(p.System),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini search: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) EditImage(ctx context.Context, image Blob, instruction string) (*Blob, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image.Data, image.MIMEType),
		genai.NewPartFromText(instruction),
	}, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image edit: %w", err)
	}
	return firstInline(resp, "image/"), nil
}

func (g *Gemini) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.ttsModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.ttsVoice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini speech: %w", err)
	}
	b := firstInline(resp, "audio/")
	if b == nil {
		return nil, nil
	}
	return b.Data, nil
}

// GenerateVideo starts a long-running generation and polls it until it
// is done or ctx expires.
func (g *Gemini) GenerateVideo(ctx context.Context, prompt string) (*Blob, error) {
	op, err := g.client.Models.GenerateVideos(ctx, g.videoModel, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini video: %w", err)
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini video poll: %w", err)
		}
	}
	if len(op.Error) > 0 {
		return nil, fmt.Errorf("gemini video operation %s: %v", op.Name, op.Error["message"])
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, nil
	}

	v := op.Response.GeneratedVideos[0]
	data := v.Video.VideoBytes
	if len(data) == 0 {
		data, err = g.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(v), nil)
		if err != nil {
			return nil, fmt.Errorf("gemini video download: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	mime := v.Video.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	return &Blob{MIMEType: mime, Data: data}, nil
}

func geminiSystem(s string) *genai.Content {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return genai.NewContentFromText(s, genai.RoleUser)
}

func geminiContents(p Prompt) []*genai.Content {
	var parts []*genai.Part
	if p.Media != nil {
		parts = append(parts, genai.NewPartFromBytes(p.Media.Data, p.Media.MIMEType))
	}
	if p.Text != "" {
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func firstInline(resp *genai.GenerateContentResponse, mimePrefix string) *Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, mimePrefix) {
				return &Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
			}
		}
	}
	return nil
}
