package lyrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/search"
)

const (
	DefaultMaxSummaryWords  = 500
	DefaultSearchMaxResults = 5
)

// LanguageModel completes a single prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Recorder receives per-stage timings. A nil error means the stage continued.
type Recorder interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveSearchFallback()
}

// Config tunes the pipeline.
type Config struct {
	MaxSummaryWords  int `yaml:"max_summary_words"`
	SearchMaxResults int `yaml:"search_max_results"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxSummaryWords == 0 {
		c.MaxSummaryWords = DefaultMaxSummaryWords
	}
	if c.SearchMaxResults == 0 {
		c.SearchMaxResults = DefaultSearchMaxResults
	}
	c.SearchMaxResults = min(c.SearchMaxResults, search.MaxResults)
}

// Output is a successful pipeline run.
type Output struct {
	Lyrics         string
	ContentHash    string
	Cached         bool
	ProcessingTime time.Duration
}

// Pipeline runs the stage machine. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	model    LanguageModel
	searcher search.Searcher
	cfg      Config
	log      logger.Logger
	recorder Recorder
	now      func() time.Time
	stages   map[Stage]func(context.Context, State) Result
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecorder reports stage timings to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline. searcher may be nil, in which case grounding always
// falls back to the original content.
func New(model LanguageModel, searcher search.Searcher, cfg Config, log logger.Logger, opts ...Option) *Pipeline {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	p := &Pipeline{
		model:    model,
		searcher: searcher,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = map[Stage]func(context.Context, State) Result{
		StageCheckSearchNeeded: p.checkSearchNeeded,
		StageSearchGrounding:   p.searchGrounding,
		StageCleanText:         p.cleanText,
		StageSummarize:         p.summarize,
		StageValidateSummary:   p.validateSummary,
		StageConvertToLyrics:   p.convertToLyrics,
	}
	return p
}

// Run drives the stage machine to completion and returns the final state.
// The error is the *StageError of the failing stage, if any.
func (p *Pipeline) Run(ctx context.Context, input string, searchEnabled bool) (State, error) {
	state := State{UserInput: input, SearchEnabled: searchEnabled}
	stage := StageCheckSearchNeeded

	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			res := Fail(state, stageErr(stage, "Pipeline cancelled", err))
			return handleError(res.State), res.Err
		}

		state.CurrentStage = stage
		started := p.now()
		res := p.stages[stage](ctx, state)
		if p.recorder != nil {
			p.recorder.ObserveStage(string(stage), p.now().Sub(started), res.Err)
		}

		if res.Failed() {
			p.log.Warn("Lyrics pipeline stage failed",
				logger.String("stage", string(stage)),
				logger.Error(res.Err),
			)
			return handleError(res.State), res.Err
		}
		state = res.State
		stage = transition(stage, state)
	}

	state.CurrentStage = StageDone
	return state, nil
}

// Execute runs the pipeline and reports the lyrics with their content hash.
func (p *Pipeline) Execute(ctx context.Context, content string, searchEnabled bool) (*Output, error) {
	started := p.now()
	state, err := p.Run(ctx, content, searchEnabled)
	if err != nil {
		return nil, err
	}
	return &Output{
		Lyrics:         state.Lyrics,
		ContentHash:    state.ContentHash,
		Cached:         false,
		ProcessingTime: max(0, p.now().Sub(started)),
	}, nil
}

// handleError is the terminal error stage.
func handleError(state State) State {
	state.CurrentStage = StageFailed
	return state
}

func (p *Pipeline) checkSearchNeeded(_ context.Context, state State) Result {
	if !state.SearchEnabled || p.searcher == nil {
		state.SearchEnabled = false
		state.EnrichedContent = state.UserInput
	}
	return Continue(state)
}

// searchGrounding never fails: any search problem leaves the original
// content in place.
func (p *Pipeline) searchGrounding(ctx context.Context, state State) Result {
	state.EnrichedContent = state.UserInput

	results, err := p.searcher.Search(ctx, state.UserInput, p.cfg.SearchMaxResults)
	if err != nil || len(results) == 0 {
		if err != nil {
			p.log.Warn("Search grounding failed, using original content",
				logger.Int("query_length", len(state.UserInput)),
				logger.Error(err),
			)
		}
		if p.recorder != nil {
			p.recorder.ObserveSearchFallback()
		}
		return Continue(state)
	}

	state.EnrichedContent = "Original Content:\n" + state.UserInput +
		"\nAdditional Context from Search:\n" + search.Format(results)
	return Continue(state)
}

func (p *Pipeline) cleanText(_ context.Context, state State) Result {
	state.CleanedText = CleanText(state.EnrichedContent)
	return Continue(state)
}

func (p *Pipeline) summarize(ctx context.Context, state State) Result {
	summary, err := p.model.Complete(ctx, buildSummarizePrompt(state.CleanedText, p.cfg.MaxSummaryWords))
	if err != nil {
		return Fail(state, stageErr(StageSummarize, "Failed to summarize content", err))
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Fail(state, stageErr(StageSummarize, "Failed to summarize content: empty summary", nil))
	}
	state.Summary = summary
	return Continue(state)
}

func (p *Pipeline) validateSummary(_ context.Context, state State) Result {
	words := wordCount(state.Summary)
	state.SummaryValid = words <= p.cfg.MaxSummaryWords
	if !state.SummaryValid {
		msg := fmt.Sprintf("Summary too long (%d words, maximum %d)", words, p.cfg.MaxSummaryWords)
		return Fail(state, stageErr(StageValidateSummary, msg, nil))
	}
	return Continue(state)
}

func (p *Pipeline) convertToLyrics(ctx context.Context, state State) Result {
	text, err := p.model.Complete(ctx, buildLyricsPrompt(state.Summary))
	if err != nil {
		return Fail(state, stageErr(StageConvertToLyrics, "Failed to convert to lyrics", err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Fail(state, stageErr(StageConvertToLyrics, "Failed to convert to lyrics: empty lyrics", nil))
	}
	state.Lyrics = text
	state.ContentHash = domain.ContentHash(state.UserInput)
	return Continue(state)
}
