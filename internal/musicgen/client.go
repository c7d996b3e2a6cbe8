// Package musicgen is the client for the external music generation service.
// It submits lyrics, polls job status and fetches word-level timestamps,
// normalizing the service's loosely shaped responses into domain types.
package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/waghostel/LearningSong-sub001/infrastructure/circuitbreaker"
	infraerrors "github.com/waghostel/LearningSong-sub001/infrastructure/errors"
	infrahttp "github.com/waghostel/LearningSong-sub001/infrastructure/http"
	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

const (
	DefaultBaseURL       = "https://api.sunoapi.org"
	DefaultModel         = "V4_5"
	DefaultTimeout       = 30 * time.Second
	DefaultEstimatedTime = 120
	DefaultRatePerSecond = 2.0
	DefaultBurst         = 4

	generatePath   = "/api/v1/generate"
	recordInfoPath = "/api/v1/generate/record-info"
	timestampsPath = "/api/v1/generate/get-timestamped-lyrics"

	maxResponseBody = 4 << 20
	bodyCodeOK      = 200
)

// Config configures the client.
type Config struct {
	BaseURL     string        `env:"SUNO_API_URL"      yaml:"base_url"`
	APIKey      string        `env:"SUNO_API_KEY"      yaml:"api_key"`
	Model       string        `env:"SUNO_MODEL"        yaml:"model"`
	CallbackURL string        `env:"SUNO_CALLBACK_URL" yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
	// EstimatedTime is the job duration in seconds reported to callers.
	EstimatedTime  int     `yaml:"estimated_time"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	BreakerEnabled bool    `yaml:"breaker_enabled"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.EstimatedTime == 0 {
		c.EstimatedTime = DefaultEstimatedTime
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = DefaultRatePerSecond
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
}

// Recorder receives request outcomes and unmapped upstream statuses.
type Recorder interface {
	ObserveRequest(op string, d time.Duration, err error)
	ObserveUnknownStatus(status string)
}

// Job is the handle of a submitted generation.
type Job struct {
	TaskID        string
	EstimatedTime int
}

// NewJob rejects empty task ids.
func NewJob(taskID string, estimatedTime int) (Job, error) {
	if strings.TrimSpace(taskID) == "" {
		return Job{}, errors.New("job task id is empty")
	}
	return Job{TaskID: taskID, EstimatedTime: max(0, estimatedTime)}, nil
}

// TaskStatus is the normalized state of an upstream job.
type TaskStatus struct {
	TaskID         string
	Status         domain.TaskStatus
	UpstreamStatus string
	Progress       int
	Variations     []domain.SongVariation
	Error          string
}

// Client talks to the generation service. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	log        logger.Logger
	recorder   Recorder
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled client built from Config.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRecorder reports request outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// New validates cfg and builds a client.
func New(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &domain.ValidationError{Field: "api_key", Message: "music generation API key is required"}
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Client{
		cfg: cfg,
		httpClient: infrahttp.NewClient(&infrahttp.ClientConfig{
			Timeout:   cfg.Timeout,
			UserAgent: "learningsong/1.0",
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:     log,
		now:     time.Now,
	}
	if cfg.BreakerEnabled {
		bc := circuitbreaker.DefaultConfig()
		bc.IsFailure = countsAgainstUpstream
		bc.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Music generation circuit changed state",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}
		c.breaker = circuitbreaker.New(bc)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// countsAgainstUpstream keeps caller mistakes from opening the circuit.
func countsAgainstUpstream(err error) bool {
	var (
		authErr  *AuthenticationError
		validErr *domain.ValidationError
		apiErr   *APIError
	)
	switch {
	case err == nil, errors.As(err, &authErr), errors.As(err, &validErr):
		return false
	case errors.As(err, &apiErr):
		return apiErr.StatusCode >= 500
	}
	return true
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl"`
}

// CreateSong submits lyrics and returns the job handle.
func (c *Client) CreateSong(ctx context.Context, lyrics string, style domain.MusicStyle, title string) (Job, error) {
	if strings.TrimSpace(lyrics) == "" {
		return Job{}, &domain.ValidationError{Field: "lyrics", Message: "lyrics must not be empty"}
	}
	if title == "" {
		title = "Learning Song"
	}

	body := generateRequest{
		Prompt:      lyrics,
		Style:       style.Tags(),
		Title:       title,
		CustomMode:  true,
		Model:       c.cfg.Model,
		CallBackURL: c.cfg.CallbackURL,
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := c.call(ctx, "create_song", http.MethodPost, generatePath, body, &data); err != nil {
		return Job{}, err
	}

	job, err := NewJob(data.TaskID, c.cfg.EstimatedTime)
	if err != nil {
		return Job{}, &APIError{StatusCode: http.StatusBadGateway, Message: "response did not include a task id"}
	}
	c.log.Info("Song generation submitted",
		logger.String("task_id", job.TaskID),
		logger.String("style", string(style)),
	)
	return job, nil
}

type recordInfo struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Response     *struct {
		SunoData []sunoTrack `json:"sunoData"`
		Data     []sunoTrack `json:"data"`
	} `json:"response"`
}

type sunoTrack struct {
	ID             string  `json:"id"`
	AudioURL       string  `json:"audioUrl"`
	AudioURLSnake  string  `json:"audio_url"`
	SourceAudioURL string  `json:"sourceAudioUrl"`
	StreamAudioURL string  `json:"streamAudioUrl"`
	ImageURL       string  `json:"imageUrl"`
	Title          string  `json:"title"`
	Tags           string  `json:"tags"`
	Duration       float64 `json:"duration"`
}

func (t sunoTrack) audioURL() string {
	for _, u := range []string{t.AudioURL, t.AudioURLSnake, t.SourceAudioURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// GetTaskStatus fetches and normalizes the job's current state.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, &domain.ValidationError{Field: "task_id", Message: "task id must not be empty"}
	}

	var info recordInfo
	path := recordInfoPath + "?taskId=" + url.QueryEscape(taskID)
	if err := c.call(ctx, "get_task_status", http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}

	status, known := MapStatus(info.Status)
	if !known {
		c.log.Warn("Unknown upstream task status",
			logger.String("task_id", taskID),
			logger.String("upstream_status", info.Status),
		)
		if c.recorder != nil {
			c.recorder.ObserveUnknownStatus(info.Status)
		}
	}

	result := &TaskStatus{
		TaskID:         taskID,
		Status:         status,
		UpstreamStatus: info.Status,
		Progress:       Progress(info.Status),
		Variations:     c.variations(taskID, info),
	}

	switch status {
	case domain.TaskStatusFailed:
		result.Error = info.ErrorMessage
		if result.Error == "" {
			result.Error = "Generation failed: " + info.Status
		}
	case domain.TaskStatusCompleted:
		if len(result.Variations) == 0 {
			c.log.Warn("Completed task returned no variations", logger.String("task_id", taskID))
		}
	}
	return result, nil
}

func (c *Client) variations(taskID string, info recordInfo) []domain.SongVariation {
	if info.Response == nil {
		return nil
	}
	tracks := info.Response.SunoData
	if len(tracks) == 0 {
		tracks = info.Response.Data
	}

	out := make([]domain.SongVariation, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			c.log.Warn("Skipping track without id", logger.String("task_id", taskID))
			continue
		}
		out = append(out, domain.SongVariation{
			VariationIndex: len(out),
			AudioID:        t.ID,
			AudioURL:       t.audioURL(),
			StreamURL:      t.StreamAudioURL,
			ImageURL:       t.ImageURL,
			Title:          t.Title,
			Tags:           t.Tags,
			Duration:       t.Duration,
		})
	}
	return out
}

type timestampsRequest struct {
	TaskID  string `json:"taskId"`
	AudioID string `json:"audioId"`
}

type timestampsData struct {
	AlignedWords []struct {
		Word    string  `json:"word"`
		Success bool    `json:"success"`
		StartS  float64 `json:"startS"`
		EndS    float64 `json:"endS"`
		PAlign  float64 `json:"palign"`
	} `json:"alignedWords"`
	WaveformData []float64 `json:"waveformData"`
	HootCER      float64   `json:"hootCer"`
	IsStreamed   bool      `json:"isStreamed"`
}

// GetTimestampedLyrics fetches word alignment for one variation. ok is false
// when the service has no alignment for it (a 404, or no aligned words).
func (c *Client) GetTimestampedLyrics(ctx context.Context, taskID, audioID string) (*domain.TimestampedLyrics, bool, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(audioID) == "" {
		return nil, false, &domain.ValidationError{Field: "audio_id", Message: "task id and audio id are required"}
	}

	var data timestampsData
	err := c.call(ctx, "get_timestamped_lyrics", http.MethodPost, timestampsPath,
		timestampsRequest{TaskID: taskID, AudioID: audioID}, &data)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			return nil, false, err
		}
		c.log.Debug("Timestamped lyrics not available",
			logger.String("task_id", taskID),
			logger.String("audio_id", audioID),
			logger.String("reason", apiErr.Message),
		)
		return nil, false, nil
	}
	if len(data.AlignedWords) == 0 {
		return nil, false, nil
	}

	result := &domain.TimestampedLyrics{
		TaskID:       taskID,
		AudioID:      audioID,
		AlignedWords: make([]domain.AlignedWord, 0, len(data.AlignedWords)),
		WaveformData: data.WaveformData,
		HootCER:      data.HootCER,
		IsStreamed:   data.IsStreamed,
		FetchedAt:    c.now().UTC(),
	}
	for _, w := range data.AlignedWords {
		result.AlignedWords = append(result.AlignedWords, domain.AlignedWord{
			Word: w.Word, StartS: w.StartS, EndS: w.EndS, Success: w.Success, PAlign: w.PAlign,
		})
	}
	result.SortWords()
	return result, true, nil
}

// call performs one request under the rate limiter and circuit breaker and
// decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	started := c.now()
	err := c.limiter.Wait(ctx)
	if err == nil {
		if c.breaker != nil {
			err = c.breaker.Execute(ctx, func() error { return c.do(ctx, op, method, path, in, out) })
		} else {
			err = c.do(ctx, op, method, path, in, out)
		}
	} else if isTimeout(err) {
		err = &TimeoutError{Op: op, Timeout: c.cfg.Timeout, Err: err}
	}

	if c.recorder != nil {
		c.recorder.ObserveRequest(op, c.now().Sub(started), err)
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Op: op, Timeout: c.cfg.Timeout, Err: err}
		}
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		parsed := infraerrors.NewHTTPError(resp.StatusCode, resp.Status, body)
		return classify(resp.StatusCode, parsed.Message, resp.Header.Get("Retry-After"))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Op: op, Timeout: c.cfg.Timeout, Err: err}
		}
		return fmt.Errorf("read %s response: %w", op, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if env.Code != bodyCodeOK {
		return classify(env.Code, env.Msg, "")
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response data: " + err.Error()}
	}
	return nil
}

// classify maps an HTTP status or envelope code to the client's error kinds.
func classify(code int, message, retryAfter string) error {
	switch code {
	case http.StatusUnauthorized:
		return &AuthenticationError{Message: message}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: message, RetryAfter: parseRetryAfter(retryAfter)}
	default:
		return &APIError{StatusCode: code, Message: message}
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
