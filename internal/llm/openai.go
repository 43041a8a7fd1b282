package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"gwgp-assistant-backend/internal/config"
	"gwgp-assistant-backend/internal/datauri"
)

// OpenAI serves the same calls through the OpenAI API. It has no video
// model and no grounded search.
type OpenAI struct {
	client     *openai.Client
	model      string
	imageModel string
	ttsModel   string
	ttsVoice   string
}

func NewOpenAI(cfg config.Config) *OpenAI {
	return NewOpenAIWithClient(openai.NewClient(cfg.OpenAIAPIKey), cfg)
}

func NewOpenAIWithClient(client *openai.Client, cfg config.Config) *OpenAI {
	return &OpenAI{
		client:     client,
		model:      cfg.OpenAIModel,
		imageModel: cfg.OpenAIImageModel,
		ttsModel:   cfg.OpenAITTSModel,
		ttsVoice:   cfg.OpenAITTSVoice,
	}
}

func (o *OpenAI) Name() string { return config.ProviderOpenAI }

func (o *OpenAI) GenerateText(ctx context.Context, p Prompt) (string, error) {
	msgs, err := openaiMessages(p)
	if err != nil {
		return "", err
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) GenerateWithTools(ctx context.Context, p Prompt, tools []Tool) (string, error) {
	msgs, err := openaiMessages(p)
	if err != nil {
		return "", err
	}
	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		fn := &openai.FunctionDefinition{Name: t.Name, Description: t.Description}
		if t.Parameters != nil {
			fn.Parameters = t.Parameters
		}
		defs = append(defs, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}

	var text string
	for step := 0; step < MaxToolSteps; step++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: msgs,
			Tools:    defs,
		})
		if err != nil {
			return "", fmt.Errorf("openai chat: %w", err)
		}
		if len(resp.Choices) == 0 {
			return text, nil
		}
		msg := resp.Choices[0].Message
		text = msg.Content
		if len(msg.ToolCalls) == 0 {
			return text, nil
		}
		msgs = append(msgs, msg)
		for _, tc := range msg.ToolCalls {
			result := map[string]any{}
			out, err := callTool(ctx, tools, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			if err != nil {
				result["error"] = err.Error()
			} else {
				result["output"] = out
			}
			content, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("encode %s result: %w", tc.Function.Name, err)
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(content),
				ToolCallID: tc.ID,
			})
		}
	}
	return text, nil
}

// Search falls back to plain generation.
func (o *OpenAI) Search(ctx context.Context, p Prompt) (string, error) {
	return o.GenerateText(ctx, p)
}

func (o *OpenAI) EditImage(ctx context.Context, image Blob, instruction string) (*Blob, error) {
	name := "image." + strings.TrimPrefix(image.MIMEType, "image/")
	req := openai.ImageEditRequest{
		Image:  openai.WrapReader(bytes.NewReader(image.Data), name, image.MIMEType),
		Prompt: instruction,
		Model:  o.imageModel,
		N:      1,
	}
	// gpt-image models always answer with base64 and reject the field.
	if strings.HasPrefix(o.imageModel, "dall-e") {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}
	resp, err := o.client.CreateEditImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai image edit: %w", err)
	}
	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai image edit: decode: %w", err)
		}
		return &Blob{MIMEType: "image/png", Data: data}, nil
	}
	return nil, nil
}

func (o *OpenAI) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.ttsVoice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()
	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read: %w", err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	return pcm, nil
}

func (o *OpenAI) GenerateVideo(context.Context, string) (*Blob, error) {
	return nil, fmt.Errorf("openai video: %w", ErrUnsupported)
}

func openaiMessages(p Prompt) ([]openai.ChatCompletionMessage, error) {
	var msgs []openai.ChatCompletionMessage
	if strings.TrimSpace(p.System) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	if p.Media == nil {
		return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Text}), nil
	}
	if !strings.HasPrefix(p.Media.MIMEType, "image/") {
		return nil, fmt.Errorf("openai %s attachment: %w", p.Media.MIMEType, ErrUnsupported)
	}
	parts := []openai.ChatMessagePart{{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: datauri.Encode(p.Media.MIMEType, p.Media.Data)},
	}}
	if p.Text != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}), nil
}
