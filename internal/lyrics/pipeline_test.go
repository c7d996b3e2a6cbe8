package lyrics_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/lyrics"
	"github.com/waghostel/LearningSong-sub001/internal/search"
)

// scriptedModel answers summarize prompts with summary and lyric prompts with
// song, recording every prompt.
type scriptedModel struct {
	mu         sync.Mutex
	prompts    []string
	summary    string
	summaryErr error
	song       string
	songErr    error
}

func (m *scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if strings.HasPrefix(prompt, "Write song lyrics") {
		return m.song, m.songErr
	}
	return m.summary, m.summaryErr
}

type stubSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

type recorder struct {
	stages    []string
	fallbacks int
}

func (r *recorder) ObserveStage(stage string, _ time.Duration, _ error) {
	r.stages = append(r.stages, stage)
}

func (r *recorder) ObserveSearchFallback() { r.fallbacks++ }

func TestPipeline_SearchDisabled(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: "Plants make sugar from light.", song: "[Verse 1]\nLight to sugar"}
	searcher := &stubSearcher{}
	rec := &recorder{}
	p := lyrics.New(model, searcher, lyrics.Config{}, nil, lyrics.WithRecorder(rec))

	state, err := p.Run(context.Background(), "<p>Photosynthesis  uses light</p>", false)
	require.NoError(t, err)

	assert.Empty(t, searcher.queries)
	assert.Equal(t, "<p>Photosynthesis  uses light</p>", state.EnrichedContent)
	assert.Equal(t, "Photosynthesis uses light", state.CleanedText)
	assert.True(t, state.SummaryValid)
	assert.Equal(t, "[Verse 1]\nLight to sugar", state.Lyrics)
	assert.Equal(t, lyrics.StageDone, state.CurrentStage)
	assert.Equal(t, []string{
		"check_search_needed", "clean_text", "summarize", "validate_summary_length", "convert_to_lyrics",
	}, rec.stages)
}

func TestPipeline_SearchGrounding(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: "summary", song: "song"}
	searcher := &stubSearcher{results: []search.Result{{Title: "Chlorophyll", Snippet: "green pigment"}}}
	p := lyrics.New(model, searcher, lyrics.Config{}, nil)

	input := "one two three four five six seven eight nine ten eleven twelve"
	state, err := p.Run(context.Background(), input, true)
	require.NoError(t, err)

	require.Len(t, searcher.queries, 1)
	assert.Equal(t, input, searcher.queries[0])
	assert.Equal(t, "Original Content:\n"+input+"\nAdditional Context from Search:\n- Chlorophyll: green pigment",
		state.EnrichedContent)
	assert.Contains(t, model.prompts[0], "Chlorophyll: green pigment")
}

func TestPipeline_SearchFailureFallsBack(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: "summary", song: "song"}
	rec := &recorder{}
	p := lyrics.New(model, &stubSearcher{err: errors.New("quota")}, lyrics.Config{}, nil, lyrics.WithRecorder(rec))

	state, err := p.Run(context.Background(), "The water cycle", true)
	require.NoError(t, err)
	assert.Equal(t, "The water cycle", state.EnrichedContent)
	assert.Equal(t, "song", state.Lyrics)
	assert.Equal(t, 1, rec.fallbacks)
}

func TestPipeline_SummarizeFailure(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summaryErr: errors.New("model unavailable"), song: "never"}
	p := lyrics.New(model, nil, lyrics.Config{}, nil)

	state, err := p.Run(context.Background(), "content", false)
	require.Error(t, err)

	var stageErr *lyrics.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, lyrics.StageSummarize, stageErr.Stage)
	assert.Equal(t, "Failed to summarize content: model unavailable", err.Error())
	assert.Equal(t, lyrics.StageFailed, state.CurrentStage)
	assert.Equal(t, err.Error(), state.Error)
	assert.Empty(t, state.Lyrics)
	assert.Len(t, model.prompts, 1)
}

func TestPipeline_SummaryTooLong(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: strings.Repeat("word ", 11), song: "never"}
	p := lyrics.New(model, nil, lyrics.Config{MaxSummaryWords: 10}, nil)

	state, err := p.Run(context.Background(), "content", false)
	require.ErrorIs(t, err, lyrics.ErrSummaryTooLong)
	assert.Equal(t, "Summary too long (11 words, maximum 10)", err.Error())
	assert.False(t, state.SummaryValid)
	assert.Empty(t, state.Lyrics)
	assert.Len(t, model.prompts, 1)
}

func TestPipeline_SummaryAtLimitPasses(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: strings.TrimSpace(strings.Repeat("word ", 10)), song: "song"}
	p := lyrics.New(model, nil, lyrics.Config{MaxSummaryWords: 10}, nil)

	state, err := p.Run(context.Background(), "content", false)
	require.NoError(t, err)
	assert.True(t, state.SummaryValid)
}

func TestPipeline_ConvertFailure(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: "summary", songErr: errors.New("overloaded")}
	p := lyrics.New(model, nil, lyrics.Config{}, nil)

	state, err := p.Run(context.Background(), "content", false)
	require.Error(t, err)
	assert.Equal(t, "Failed to convert to lyrics: overloaded", err.Error())
	assert.Empty(t, state.Lyrics)
	assert.Empty(t, state.ContentHash)
}

func TestPipeline_HashUsesOriginalInput(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{summary: "summary", song: "song"}
	searcher := &stubSearcher{results: []search.Result{{Title: "extra"}}}
	p := lyrics.New(model, searcher, lyrics.Config{}, nil)

	out, err := p.Execute(context.Background(), "  Newton's Laws ", true)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentHash("newton's laws"), out.ContentHash)
	assert.False(t, out.Cached)
	assert.GreaterOrEqual(t, out.ProcessingTime, time.Duration(0))
}

func TestPipeline_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := lyrics.New(&scriptedModel{summary: "s", song: "l"}, nil, lyrics.Config{}, nil)
	state, err := p.Run(ctx, "content", false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, lyrics.StageFailed, state.CurrentStage)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello   world \n\t again ", "hello world again"},
		{"markup", "<div><h1>Title</h1><p>Body <b>bold</b></p></div>", "TitleBody bold"},
		{"script", "<p>keep</p><script>drop()</script>", "keep"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"double escaped", "&amp;lt;b&amp;gt;x", "x"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := lyrics.CleanText(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, lyrics.CleanText(got), "cleaning must be idempotent")
		})
	}
}
