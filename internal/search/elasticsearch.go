package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchSearcher queries a local reference index, for deployments
// that keep curated course material next to the service.
type ElasticsearchSearcher struct {
	client      *es.Client
	index       string
	titleField  string
	bodyField   string
	linkField   string
	snippetSize int
}

// NewElasticsearchSearcher searches index with the default field names
// title, body and url.
func NewElasticsearchSearcher(client *es.Client, index string) *ElasticsearchSearcher {
	return &ElasticsearchSearcher{
		client:      client,
		index:       index,
		titleField:  "title",
		bodyField:   "body",
		linkField:   "url",
		snippetSize: 200,
	}
}

func (s *ElasticsearchSearcher) buildQuery(query string, size int) map[string]any {
	return map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{s.titleField + "^2", s.bodyField},
			},
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				s.bodyField: map[string]any{"fragment_size": s.snippetSize, "number_of_fragments": 1},
			},
		},
		"_source": []string{s.titleField, s.bodyField, s.linkField},
	}
}

func (s *ElasticsearchSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(s.buildQuery(query, clampResults(maxResults))); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned error [%d]: %s", res.StatusCode, string(body))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source    map[string]any      `json:"_source"`
				Highlight map[string][]string `json:"highlight,omitempty"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode elasticsearch response: %w", err)
	}

	results := make([]Result, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		r := Result{
			Title: stringField(hit.Source, s.titleField),
			Link:  stringField(hit.Source, s.linkField),
		}
		if fragments := hit.Highlight[s.bodyField]; len(fragments) > 0 {
			r.Snippet = fragments[0]
		} else {
			r.Snippet = truncate(stringField(hit.Source, s.bodyField), s.snippetSize)
		}
		results = append(results, r)
	}
	return results, nil
}

func stringField(source map[string]any, field string) string {
	v, _ := source[field].(string)
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
