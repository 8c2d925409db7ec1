package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/synthesize", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Text    string  `json:"text"`
			VoiceID string  `json:"voice_id"`
			Speed   float64 `json:"speed"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)
		assert.Equal(t, "en-US-Wavenet-A", req.VoiceID)
		assert.Equal(t, 1.5, req.Speed)

		w.Header().Set("X-Audio-Duration-Seconds", "2.25")
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFfake-wav-bytes"))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, zerolog.Nop())
	res, err := engine.Synthesize(context.Background(), "hello world", "en-US-Wavenet-A", Params{Speed: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFfake-wav-bytes"), res.Audio)
	assert.Equal(t, 2.25, res.Duration)
}

func TestSynthesizeDurationFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, zerolog.Nop())
	// 30 characters at ~15 chars/sec -> 2 seconds.
	text := "012345678901234567890123456789"
	res, err := engine.Synthesize(context.Background(), text, "v", Params{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Duration, 0.001)
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, zerolog.Nop())
	_, err := engine.Synthesize(context.Background(), "hi", "v", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSynthesizeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Synthesize(ctx, "hi", "v", Params{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStandardVoicesFilter(t *testing.T) {
	all := StandardVoices("", "")
	require.Len(t, all, 4)

	female := StandardVoices("en-us", "female")
	require.Len(t, female, 2)
	for _, v := range female {
		assert.Equal(t, "FEMALE", v.Gender)
	}

	assert.Empty(t, StandardVoices("fr-FR", ""))
}

func TestPickStandardVoice(t *testing.T) {
	known := make(map[string]bool)
	for _, v := range StandardVoices("", "") {
		known[v.ID] = true
	}
	for i := 0; i < 20; i++ {
		assert.True(t, known[PickStandardVoice()])
	}
}
