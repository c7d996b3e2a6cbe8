// Package search provides the web and index searchers that ground lyric
// generation in additional context.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

// MaxResults is the upper bound accepted by every searcher.
const MaxResults = 10

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher looks up context for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query is empty")

func clampResults(n int) int {
	if n <= 0 {
		return 1
	}
	return min(n, MaxResults)
}

// Format renders results as the context block appended to user content.
func Format(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r.Title))
		if s := strings.TrimSpace(r.Snippet); s != "" {
			b.WriteString(": ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Chain tries searchers in order and returns the first non-empty result set.
// Errors from earlier searchers are logged and only the last one is returned.
type Chain struct {
	searchers []Searcher
	log       logger.Logger
}

// NewChain builds a Chain over the non-nil searchers.
func NewChain(log logger.Logger, searchers ...Searcher) *Chain {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Chain{log: log}
	for _, s := range searchers {
		if s != nil {
			c.searchers = append(c.searchers, s)
		}
	}
	return c
}

func (c *Chain) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	var lastErr error
	for i, s := range c.searchers {
		results, err := s.Search(ctx, query, maxResults)
		if err != nil {
			c.log.Warn("Searcher failed",
				logger.Int("position", i),
				logger.Error(err),
			)
			lastErr = err
			continue
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	return nil, lastErr
}
