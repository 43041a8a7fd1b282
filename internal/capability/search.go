package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/types"
)

// Search answers a query with grounded generation where the backend
// supports it.
func (a *Assistant) Search(ctx context.Context, req types.SearchRequest) (resp types.SearchResponse, err error) {
	start := time.Now()
	fellBack := false
	defer func() { a.record(NameSearch, start, err, fellBack) }()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return resp, invalid("query is required")
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	text, err := a.backend.Search(ctx, llm.Prompt{System: a.prompts.Search.System, Text: query})
	if err != nil {
		return resp, fmt.Errorf("search: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		fellBack = true
		text = a.prompts.Search.Fallback
	}
	return types.SearchResponse{Results: text}, nil
}
