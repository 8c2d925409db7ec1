// Package synthesis talks to the external speech-synthesis service and owns
// the standard voice pool.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// ErrTimeout marks a synthesis call that exceeded its deadline. It is a
// distinct failure kind so callers can tell slow engines from broken ones.
var ErrTimeout = errors.New("synthesis timed out")

// Params are the caller-tunable synthesis parameters.
type Params struct {
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	Emotion  string  `json:"emotion,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Result is the synthesis output: raw audio and its duration in seconds.
type Result struct {
	Audio    []byte
	Duration float64
}

// Engine converts text to speech. Implementations are expected to be safe for
// concurrent use.
type Engine interface {
	Synthesize(ctx context.Context, text, voiceID string, p Params) (*Result, error)
}

// HTTPEngine calls a standalone synthesis HTTP service.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPEngine creates an engine client for the service at baseURL. Timeouts
// are driven by the caller's context, not the HTTP client.
func NewHTTPEngine(baseURL string, logger zerolog.Logger) *HTTPEngine {
	return &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger.With().Str("service", "SynthesisEngine").Logger(),
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Params
}

// Synthesize POSTs the request to /synthesize and returns the audio bytes.
// The duration comes from the X-Audio-Duration-Seconds response header; when
// the engine omits it, a rough 15-characters-per-second estimate is used.
func (e *HTTPEngine) Synthesize(ctx context.Context, text, voiceID string, p Params) (*Result, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, Params: p})
	if err != nil {
		return nil, fmt.Errorf("marshaling synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/synthesize", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("calling synthesis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(msg)).
			Msg("Synthesis service returned error")
		return nil, fmt.Errorf("synthesis service returned status %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading synthesis response: %w", err)
	}

	duration := EstimateDuration(text)
	if h := resp.Header.Get("X-Audio-Duration-Seconds"); h != "" {
		if d, err := strconv.ParseFloat(h, 64); err == nil && d > 0 {
			duration = d
		}
	}
	return &Result{Audio: audio, Duration: duration}, nil
}

// EstimateDuration approximates spoken duration at ~15 characters per second.
func EstimateDuration(text string) float64 {
	return float64(utf8.RuneCountInString(text)) / 15
}
