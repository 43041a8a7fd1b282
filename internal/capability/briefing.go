package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"gwgp-assistant-backend/internal/contract"
	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/news"
	"gwgp-assistant-backend/internal/types"
)

const (
	minStories = 3
	maxStories = 5
)

var newsToolInput = contract.MustNew[news.ToolInput](nil)

// Briefing asks the model for a Markdown news briefing built from the
// news tool, then normalizes it: one leading H1 and three to five H2
// stories whenever at least three articles are available.
func (a *Assistant) Briefing(ctx context.Context) (resp types.BriefingResponse, err error) {
	start := time.Now()
	fellBack := false
	defer func() { a.record(NameBriefing, start, err, fellBack) }()

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		fetched []types.Article
	)
	tool := llm.Tool{
		Name:        a.prompts.Briefing.Tool.Name,
		Description: a.prompts.Briefing.Tool.Description,
		Parameters:  newsToolInput.JSONSchema(),
		Call: func(ctx context.Context, args json.RawMessage) (any, error) {
			if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
				args = []byte("{}")
			}
			in, err := newsToolInput.Decode(args)
			if err != nil {
				return nil, err
			}
			articles, err := a.news.TopHeadlines(ctx, in.Topic)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			fetched = append(fetched, articles...)
			mu.Unlock()
			return news.ToolOutput{Articles: articles}, nil
		},
	}

	out, err := a.backend.GenerateWithTools(ctx, llm.Prompt{
		System: a.prompts.Briefing.System,
		Text:   a.prompts.Briefing.Request,
	}, []llm.Tool{tool})
	if err != nil {
		return resp, fmt.Errorf("briefing: %w", err)
	}

	mu.Lock()
	articles := dedupe(fetched)
	mu.Unlock()
	if countStories(out) < minStories && len(articles) < minStories {
		// The model never used the tool; fetch directly so the briefing
		// can still be rebuilt from headlines.
		direct, err := a.news.TopHeadlines(ctx, "")
		if err != nil {
			a.log.Warn().Err(err).Msg("headline fetch for briefing rebuild failed")
		}
		articles = dedupe(append(articles, direct...))
	}

	briefing, fellBack := normalizeBriefing(out, a.prompts.Briefing.Title, articles, a.prompts.Briefing.Fallback)
	return types.BriefingResponse{Briefing: briefing}, nil
}

func dedupe(articles []types.Article) []types.Article {
	seen := make(map[string]bool, len(articles))
	out := make([]types.Article, 0, len(articles))
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

type outline struct {
	leadingH1 bool
	h2Starts  []int
}

// scan finds the top-level headings of a Markdown document. Headings in
// code blocks or quotes are not counted.
func scan(src []byte) outline {
	var o outline
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if n == doc.FirstChild() {
			o.leadingH1 = ok && h.Level == 1
		}
		if !ok || h.Level != 2 || h.Lines().Len() == 0 {
			continue
		}
		o.h2Starts = append(o.h2Starts, lineStart(src, h.Lines().At(0).Start))
	}
	return o
}

func countStories(md string) int {
	return len(scan([]byte(md)).h2Starts)
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// normalizeBriefing reports whether the fallback text was used.
func normalizeBriefing(md, title string, articles []types.Article, fallback string) (string, bool) {
	h1 := "# " + title
	src := []byte(strings.TrimSpace(md))
	o := scan(src)

	if len(o.h2Starts) < minStories && len(articles) >= minStories {
		return rebuildBriefing(h1, articles), false
	}
	if len(src) == 0 {
		return h1 + "\n\n" + fallback, true
	}
	if len(o.h2Starts) > maxStories {
		src = bytes.TrimSpace(src[:o.h2Starts[maxStories]])
	}
	out := string(src)
	if !o.leadingH1 {
		out = h1 + "\n\n" + out
	}
	return out, false
}

func rebuildBriefing(h1 string, articles []types.Article) string {
	if len(articles) > maxStories {
		articles = articles[:maxStories]
	}
	var b strings.Builder
	b.WriteString(h1)
	for _, a := range articles {
		b.WriteString("\n\n## ")
		b.WriteString(strings.TrimSpace(a.Title))
		b.WriteString("\n\n")
		summary := strings.TrimSpace(a.Snippet)
		if summary == "" {
			summary = "No summary available."
		}
		b.WriteString(summary)
		if a.Source != "" {
			fmt.Fprintf(&b, " *(%s)*", a.Source)
		}
		if a.URL != "" && a.URL != "#" {
			fmt.Fprintf(&b, " [Read more](%s)", a.URL)
		}
	}
	b.WriteString("\n")
	return b.String()
}
