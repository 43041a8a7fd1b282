package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gwgp-assistant-backend/internal/datauri"
	"gwgp-assistant-backend/internal/types"
	"gwgp-assistant-backend/internal/wav"
)

// EditImage applies an instruction to a photo. No image back is an error.
func (a *Assistant) EditImage(ctx context.Context, req types.EditImageRequest) (resp types.EditImageResponse, err error) {
	start := time.Now()
	defer func() { a.record(NameImage, start, err, false) }()

	if strings.TrimSpace(req.Prompt) == "" {
		return resp, invalid("prompt is required")
	}
	photo, err := parseMedia(req.PhotoDataURI)
	if err != nil {
		return resp, err
	}
	if !strings.HasPrefix(photo.MIMEType, "image/") {
		return resp, invalid("photo must be an image, got %s", photo.MIMEType)
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.backend.EditImage(ctx, *photo, req.Prompt)
	if err != nil {
		return resp, fmt.Errorf("image edit: %w", err)
	}
	if out == nil || len(out.Data) == 0 {
		return resp, fmt.Errorf("image edit: %w", ErrNoOutput)
	}
	return types.EditImageResponse{EditedPhotoDataURI: datauri.Encode(out.MIMEType, out.Data)}, nil
}

// Speak synthesizes text and returns it as a WAV data URI.
func (a *Assistant) Speak(ctx context.Context, req types.SpeechRequest) (resp types.SpeechResponse, err error) {
	start := time.Now()
	defer func() { a.record(NameSpeech, start, err, false) }()

	if strings.TrimSpace(req.Text) == "" {
		return resp, invalid("text is required")
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	pcm, err := a.backend.SynthesizeSpeech(ctx, req.Text)
	if err != nil {
		return resp, fmt.Errorf("speech: %w", err)
	}
	// Drop a trailing partial frame rather than fail the whole clip.
	pcm = pcm[:len(pcm)-len(pcm)%wav.Mono24K16.BlockAlign()]
	if len(pcm) == 0 {
		return resp, fmt.Errorf("speech: %w", ErrNoOutput)
	}
	audio, err := wav.Encode(pcm, wav.Mono24K16)
	if err != nil {
		return resp, fmt.Errorf("speech: %w", err)
	}
	return types.SpeechResponse{Media: datauri.Encode("audio/wav", audio)}, nil
}

// GenerateVideo runs a long video generation under the video timeout.
func (a *Assistant) GenerateVideo(ctx context.Context, req types.VideoRequest) (resp types.VideoResponse, err error) {
	start := time.Now()
	defer func() { a.record(NameVideo, start, err, false) }()

	if strings.TrimSpace(req.Prompt) == "" {
		return resp, invalid("prompt is required")
	}

	ctx, cancel := withTimeout(ctx, a.videoTimeout)
	defer cancel()
	out, err := a.backend.GenerateVideo(ctx, req.Prompt)
	if err != nil {
		return resp, fmt.Errorf("video: %w", err)
	}
	if out == nil || len(out.Data) == 0 {
		return resp, fmt.Errorf("video: %w", ErrNoOutput)
	}
	mime := out.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	return types.VideoResponse{VideoDataURI: datauri.Encode(mime, out.Data)}, nil
}
