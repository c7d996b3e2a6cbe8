package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	infraerrors "github.com/waghostel/LearningSong-sub001/infrastructure/errors"
)

// DefaultGoogleEndpoint is the Custom Search JSON API.
const DefaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

// maxGoogleQueryRunes keeps the request URL inside the API's length limit.
const maxGoogleQueryRunes = 1024

// GoogleSearcher queries the Google Custom Search JSON API.
type GoogleSearcher struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	engineID   string
}

// NewGoogleSearcher returns a searcher for the given key and engine id.
// An empty endpoint selects DefaultGoogleEndpoint.
func NewGoogleSearcher(httpClient *http.Client, endpoint, apiKey, engineID string) (*GoogleSearcher, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("google search requires an api key and engine id")
	}
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	return &GoogleSearcher{httpClient: httpClient, endpoint: endpoint, apiKey: apiKey, engineID: engineID}, nil
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

func (g *GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", truncateRunes(query, maxGoogleQueryRunes))
	params.Set("num", strconv.Itoa(clampResults(maxResults)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, fmt.Errorf("google search: %w", httpErr)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode google search response: %w", err)
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		results = append(results, Result{Title: item.Title, Snippet: item.Snippet, Link: item.Link})
	}
	return results, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
