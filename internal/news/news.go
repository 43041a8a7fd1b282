// Package news supplies headlines to the briefing's news tool.
package news

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"gwgp-assistant-backend/internal/config"
	"gwgp-assistant-backend/internal/types"
)

// Source returns the current top headlines, optionally narrowed to a topic.
type Source interface {
	TopHeadlines(ctx context.Context, topic string) ([]types.Article, error)
}

// ToolInput is the argument object of the news tool.
type ToolInput struct {
	Topic string `json:"topic,omitempty"`
}

// ToolOutput is what the news tool hands back to the model.
type ToolOutput struct {
	Articles []types.Article `json:"articles"`
}

// StaticSource serves a fixed set of sample articles. It is the default
// when no headline API is configured.
type StaticSource struct {
	Articles []types.Article
}

func NewStaticSource() *StaticSource {
	return &StaticSource{Articles: []types.Article{
		{
			Title:   "AI predicts stock market trends with 95% accuracy",
			URL:     "#",
			Source:  "Tech Today",
			Snippet: "A new AI model developed by FutureCorp has shown unprecedented accuracy in predicting stock market fluctuations, causing a stir among investors.",
		},
		{
			Title:   "Global leaders meet to discuss climate change initiatives",
			URL:     "#",
			Source:  "World News Daily",
			Snippet: "Leaders from 20 nations have gathered for a summit to negotiate new treaties aimed at combating global warming.",
		},
		{
			Title:   "Breakthrough in battery technology could triple EV range",
			URL:     "#",
			Source:  "Innovation Hub",
			Snippet: "Scientists have announced a discovery in battery chemistry that could lead to electric vehicles with a range of over 1,000 miles on a single charge.",
		},
	}}
}

// TopHeadlines ignores the topic unless it matches a title or snippet;
// an unmatched topic still returns every article.
func (s *StaticSource) TopHeadlines(_ context.Context, topic string) ([]types.Article, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return append([]types.Article(nil), s.Articles...), nil
	}
	var out []types.Article
	for _, a := range s.Articles {
		if strings.Contains(strings.ToLower(a.Title+" "+a.Snippet), topic) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return append([]types.Article(nil), s.Articles...), nil
	}
	return out, nil
}

// NewSource builds the configured headline source: the HTTP source when
// an API URL is set, otherwise the static samples. A positive cache TTL
// wraps it in a Redis cache when REDIS_ADDR is set and a memory cache
// otherwise. The returned func releases the cache connection.
func NewSource(ctx context.Context, cfg config.Config, log zerolog.Logger) (Source, func(), error) {
	var src Source = NewStaticSource()
	if cfg.NewsAPIURL != "" {
		src = NewHTTPSource(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.NewsCountry)
	}
	if cfg.NewsCacheTTL <= 0 {
		return src, func() {}, nil
	}
	if cfg.RedisAddr == "" {
		return NewCachedSource(src, NewMemoryCache(), cfg.NewsCacheTTL, log), func() {}, nil
	}
	rc, err := NewRedisCache(ctx, RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return nil, nil, err
	}
	return NewCachedSource(src, rc, cfg.NewsCacheTTL, log), func() { _ = rc.Close() }, nil
}
