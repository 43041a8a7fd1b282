package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/types"
)

// Answer responds to a question, optionally about one attached image or
// video. Empty model output becomes the answer fallback.
func (a *Assistant) Answer(ctx context.Context, req types.AnswerRequest) (resp types.AnswerResponse, err error) {
	start := time.Now()
	fellBack := false
	defer func() { a.record(NameAnswer, start, err, fellBack) }()

	question := strings.TrimSpace(req.Question)
	if question == "" && req.Media == nil {
		return resp, invalid("question or media is required")
	}

	p := llm.Prompt{System: a.prompts.Answer.System, Text: "Question: " + question}
	if req.Media != nil {
		blob, err := parseMedia(req.Media.DataURI)
		if err != nil {
			return resp, err
		}
		if err := checkKind(req.Media.Type, blob.MIMEType); err != nil {
			return resp, err
		}
		p.Media = blob
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	text, err := a.backend.GenerateText(ctx, p)
	if err != nil {
		return resp, fmt.Errorf("answer: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		fellBack = true
		text = a.prompts.Answer.Fallback
	}
	return types.AnswerResponse{Answer: text}, nil
}

func checkKind(kind types.MediaKind, mimeType string) error {
	switch kind {
	case types.MediaImage:
		if strings.HasPrefix(mimeType, "image/") {
			return nil
		}
	case types.MediaVideo:
		if strings.HasPrefix(mimeType, "video/") {
			return nil
		}
	default:
		return invalid("unknown media type %q", kind)
	}
	return invalid("media type %s does not match %s payload", kind, mimeType)
}
