package search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/internal/search"
)

func TestGoogleSearcher_Search(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "cell biology", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("num"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"Cells","snippet":"Cells are units.","link":"https://example.com/cells"}]}`))
	}))
	defer server.Close()

	g, err := search.NewGoogleSearcher(server.Client(), server.URL, "key-1", "cx-1")
	require.NoError(t, err)

	results, err := g.Search(context.Background(), "  cell biology ", 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, search.Result{Title: "Cells", Snippet: "Cells are units.", Link: "https://example.com/cells"}, results[0])
}

func TestGoogleSearcher_LongQueryIsCapped(t *testing.T) {
	t.Parallel()

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	g, err := search.NewGoogleSearcher(server.Client(), server.URL, "key-1", "cx-1")
	require.NoError(t, err)

	content := strings.Repeat("photosynthesis ", 200)
	_, err = g.Search(context.Background(), content, 5)
	require.NoError(t, err)
	assert.Equal(t, 1024, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(content, got))
}

func TestGoogleSearcher_UpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted"}}`))
	}))
	defer server.Close()

	g, err := search.NewGoogleSearcher(server.Client(), server.URL, "k", "cx")
	require.NoError(t, err)

	_, err = g.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")

	_, err = g.Search(context.Background(), "   ", 5)
	require.ErrorIs(t, err, search.ErrEmptyQuery)
}

func TestNewGoogleSearcher_RequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := search.NewGoogleSearcher(http.DefaultClient, "", "", "cx")
	require.Error(t, err)
}

func TestElasticsearchSearcher_Search(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/course-notes/_search", r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"title":"Mitosis","body":"Mitosis splits a cell.","url":"https://notes/mitosis"},
			 "highlight":{"body":["<em>Mitosis</em> splits"]}},
			{"_source":{"title":"Meiosis","body":"Meiosis halves chromosomes.","url":"https://notes/meiosis"}}
		]}}`))
	}))
	defer server.Close()

	client, err := es.NewClient(es.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	results, err := search.NewElasticsearchSearcher(client, "course-notes").Search(context.Background(), "cell division", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "<em>Mitosis</em> splits", results[0].Snippet)
	assert.Equal(t, "Meiosis halves chromosomes.", results[1].Snippet)
	assert.Equal(t, "https://notes/meiosis", results[1].Link)
}

type stubSearcher struct {
	results []search.Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, string, int) ([]search.Result, error) {
	s.calls++
	return s.results, s.err
}

func TestChain_FallsThrough(t *testing.T) {
	t.Parallel()

	failing := &stubSearcher{err: errors.New("down")}
	empty := &stubSearcher{}
	ok := &stubSearcher{results: []search.Result{{Title: "hit"}}}

	results, err := search.NewChain(nil, failing, nil, empty, ok).Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, "hit", results[0].Title)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)

	_, err = search.NewChain(nil, failing).Search(context.Background(), "q", 3)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	out := search.Format([]search.Result{
		{Title: "A", Snippet: "first"},
		{Title: "B"},
	})
	assert.Equal(t, "- A: first\n- B", out)
}
