// Package capability holds the assistant's adapters. Each one validates
// a request, makes one model call and maps the result back, either
// substituting a fixed reply (soft-fail) or returning ErrNoOutput
// (hard-fail) when the model produced nothing usable.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gwgp-assistant-backend/internal/datauri"
	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/metrics"
	"gwgp-assistant-backend/internal/news"
	"gwgp-assistant-backend/internal/prompts"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoOutput     = errors.New("model returned no output")
	ErrUnsupported  = llm.ErrUnsupported
)

// Capability names, used as metric labels and log fields.
const (
	NameAnswer   = "answer"
	NameImage    = "image_edit"
	NameSpeech   = "speech"
	NameVideo    = "video"
	NameBriefing = "briefing"
	NameSearch   = "search"
)

type Options struct {
	Backend        llm.Backend
	Prompts        prompts.Set
	News           news.Source
	Logger         zerolog.Logger
	RequestTimeout time.Duration
	VideoTimeout   time.Duration
}

type Assistant struct {
	backend      llm.Backend
	prompts      prompts.Set
	news         news.Source
	log          zerolog.Logger
	timeout      time.Duration
	videoTimeout time.Duration
}

func New(opts Options) *Assistant {
	src := opts.News
	if src == nil {
		src = news.NewStaticSource()
	}
	return &Assistant{
		backend:      opts.Backend,
		prompts:      opts.Prompts,
		news:         src,
		log:          opts.Logger,
		timeout:      opts.RequestTimeout,
		videoTimeout: opts.VideoTimeout,
	}
}

// Provider names the backend in use.
func (a *Assistant) Provider() string { return a.backend.Name() }

// Prompts exposes the prompt set, e.g. for the voice error reply.
func (a *Assistant) Prompts() prompts.Set { return a.prompts }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (a *Assistant) record(capability string, start time.Time, err error, fellBack bool) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrInvalidInput):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
	case fellBack:
		outcome = metrics.OutcomeFallback
	}
	took := time.Since(start)
	metrics.ObserveCapability(capability, outcome, took)

	ev := a.log.Debug()
	if outcome == metrics.OutcomeError {
		ev = a.log.Warn().Err(err)
	}
	ev.Str("capability", capability).Str("outcome", outcome).Dur("took", took).Msg("capability call")
}

func parseMedia(raw string) (*llm.Blob, error) {
	u, err := datauri.Parse(raw)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return &llm.Blob{MIMEType: u.MIMEType, Data: u.Data}, nil
}
