package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"gwgp-assistant-backend/internal/types"
)

// HTTPSource reads a NewsAPI-compatible top-headlines endpoint. The API
// key travels as a bearer token.
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
	country    string
	pageSize   int
}

func NewHTTPSource(baseURL, apiKey, country string) *HTTPSource {
	client := &http.Client{Timeout: 20 * time.Second}
	if apiKey != "" {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: apiKey,
			TokenType:   "Bearer",
		}))
		client.Timeout = 20 * time.Second
	}
	return &HTTPSource{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		country:    country,
		pageSize:   10,
	}
}

type headlinesResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
}

func (s *HTTPSource) TopHeadlines(ctx context.Context, topic string) ([]types.Article, error) {
	q := url.Values{}
	if s.country != "" {
		q.Set("country", s.country)
	}
	if t := strings.TrimSpace(topic); t != "" {
		q.Set("q", t)
	}
	q.Set("pageSize", fmt.Sprint(s.pageSize))

	var out headlinesResponse
	if err := s.getJSON(ctx, "/top-headlines?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Status != "" && out.Status != "ok" {
		return nil, fmt.Errorf("news api: %s", out.Message)
	}

	articles := make([]types.Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		if strings.TrimSpace(a.Title) == "" || a.Title == "[Removed]" {
			continue
		}
		articles = append(articles, types.Article{
			Title:   a.Title,
			URL:     a.URL,
			Source:  a.Source.Name,
			Snippet: a.Description,
		})
	}
	return articles, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("news api %s failed: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
