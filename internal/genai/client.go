// Package genai is the HTTP client for the unary generation endpoints of the
// remote service: one-shot text-to-speech synthesis and long-running video
// generation jobs. Unlike the realtime channel, every call here is a plain
// request/response over HTTPS.
//
// Typical usage:
//
//	c, err := genai.New("https://generativeservice.example/v1", "API_KEY",
//	    genai.WithTTSModel("tts-hd"),
//	    genai.WithTimeout(15*time.Second),
//	)
//	audio, err := c.Synthesize(ctx, "read this aloud")
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pvanloo/sonoria/internal/jobs"
	"github.com/pvanloo/sonoria/pkg/pcm"
)

// ErrRequest wraps transport and protocol failures talking to the service.
var ErrRequest = errors.New("genai: request failed")

const (
	defaultTimeout = 60 * time.Second

	synthesizeEndpoint = "/audio:synthesize"
	videoJobsEndpoint  = "/video/jobs"

	// ttsSampleRate is the sample rate of synthesised speech, fixed by the
	// remote service.
	ttsSampleRate = 24000

	// ttsChannels is always mono.
	ttsChannels = 1
)

// ---- options ----

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTTSModel selects the text-to-speech model.
func WithTTSModel(model string) Option {
	return func(c *Client) {
		c.ttsModel = model
	}
}

// WithVideoModel selects the video generation model.
func WithVideoModel(model string) Option {
	return func(c *Client) {
		c.videoModel = model
	}
}

// WithHTTPClient substitutes the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// ---- Client ----

// Client talks to the unary generation endpoints. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	ttsModel   string
	videoModel string
	httpClient *http.Client
}

// New creates a Client targeting the service at baseURL. baseURL and apiKey
// must be non-empty.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("genai: baseURL must not be empty")
	}
	if apiKey == "" {
		return nil, errors.New("genai: apiKey must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ---- wire types ----

type synthesizeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type synthesizeResponse struct {
	// Audio is base64-encoded 16-bit mono PCM at 24 kHz.
	Audio    string `json:"audio"`
	MIMEType string `json:"mimeType,omitempty"`
}

type videoJobRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type videoJobResponse struct {
	Name string `json:"name"`
}

type videoJobStatus struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	URI string `json:"uri,omitempty"`
}

// SynthesisResult is decoded synthesised speech.
type SynthesisResult struct {
	// PCM is raw 16-bit mono audio.
	PCM []byte

	// SampleRate is always 24000.
	SampleRate int

	// Channels is always 1.
	Channels int
}

// Synthesize converts text to speech and returns the decoded PCM. The remote
// service responds with base64 audio; decoding failures surface as
// [pcm.ErrDecode].
func (c *Client) Synthesize(ctx context.Context, text string) (SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return SynthesisResult{}, errors.New("genai: text must not be empty")
	}

	var resp synthesizeResponse
	err := c.post(ctx, synthesizeEndpoint, synthesizeRequest{Text: text, Model: c.ttsModel}, &resp)
	if err != nil {
		return SynthesisResult{}, err
	}

	audio, err := pcm.DecodeBase64(resp.Audio)
	if err != nil {
		return SynthesisResult{}, fmt.Errorf("genai: synthesis payload: %w", err)
	}
	return SynthesisResult{
		PCM:        audio,
		SampleRate: ttsSampleRate,
		Channels:   ttsChannels,
	}, nil
}

// StartVideoJob submits a video generation request and returns the job name
// to poll with [Client.VideoJobStatus].
func (c *Client) StartVideoJob(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("genai: prompt must not be empty")
	}

	var resp videoJobResponse
	err := c.post(ctx, videoJobsEndpoint, videoJobRequest{Prompt: prompt, Model: c.videoModel}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("%w: job name missing from response", ErrRequest)
	}
	return resp.Name, nil
}

// VideoJobStatus fetches the current status of a video generation job. The
// returned [jobs.Status] plugs directly into [jobs.Wait].
func (c *Client) VideoJobStatus(ctx context.Context, name string) (jobs.Status, error) {
	var status videoJobStatus
	if err := c.get(ctx, videoJobsEndpoint+"/"+name, &status); err != nil {
		return jobs.Status{}, err
	}

	st := jobs.Status{Done: status.Done}
	if status.Error != nil {
		st.Err = errors.New(status.Error.Message)
	}
	return st, nil
}

// VideoJobChecker adapts a job name to a [jobs.StatusFunc] for [jobs.Wait].
func (c *Client) VideoJobChecker(name string) jobs.StatusFunc {
	return func(ctx context.Context) (jobs.Status, error) {
		return c.VideoJobStatus(ctx, name)
	}
}

// ---- transport ----

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("genai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("genai: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", ErrRequest, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}
	return nil
}
