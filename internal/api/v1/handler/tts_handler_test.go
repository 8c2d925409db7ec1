package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrbuddhu/Speechix/internal/middleware"
	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"
	"github.com/mrbuddhu/Speechix/internal/synthesis"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTTSService lets each test plug in just the methods it exercises.
type stubTTSService struct {
	submitFn  func(ctx context.Context, userID string, req service.SubmitJobRequest) (*model.TTSJob, error)
	processFn func(ctx context.Context, jobID string) (*model.TTSJob, error)
	statusFn  func(ctx context.Context, jobID, userID string) (*model.TTSJob, error)
	cancelFn  func(ctx context.Context, jobID, userID string) (bool, error)
}

func (s *stubTTSService) SubmitJob(ctx context.Context, userID string, req service.SubmitJobRequest) (*model.TTSJob, error) {
	return s.submitFn(ctx, userID, req)
}

func (s *stubTTSService) ProcessJob(ctx context.Context, jobID string) (*model.TTSJob, error) {
	return s.processFn(ctx, jobID)
}

func (s *stubTTSService) GetJobStatus(ctx context.Context, jobID, userID string) (*model.TTSJob, error) {
	return s.statusFn(ctx, jobID, userID)
}

func (s *stubTTSService) CancelJob(ctx context.Context, jobID, userID string) (bool, error) {
	return s.cancelFn(ctx, jobID, userID)
}

func (s *stubTTSService) ListUserJobs(context.Context, string, model.JobStatus, int, int) ([]model.TTSJob, int, error) {
	return nil, 0, nil
}

func (s *stubTTSService) CreateReferenceAudio(context.Context, string, []byte, string, string, string, bool, map[string]any) (*model.ReferenceAudio, error) {
	return nil, nil
}

func (s *stubTTSService) DeleteReferenceAudio(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *stubTTSService) ListReferenceAudios(context.Context, string, bool, int, int) ([]model.ReferenceAudio, int, error) {
	return nil, 0, nil
}

func (s *stubTTSService) Usage(context.Context, string) (*service.UsageReport, error) {
	return nil, nil
}

func (s *stubTTSService) AvailableVoices(language, gender string) []synthesis.Voice {
	return synthesis.StandardVoices(language, gender)
}

func authed(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, userID)
	return req.WithContext(ctx)
}

func newTTSHandler(stub *stubTTSService) *TTSHandler {
	return NewTTSHandler(stub, validator.New(validator.WithRequiredStructEnabled()), 1<<20, zerolog.Nop())
}

func TestSubmitJobHandler(t *testing.T) {
	stub := &stubTTSService{
		submitFn: func(_ context.Context, userID string, req service.SubmitJobRequest) (*model.TTSJob, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "hello", req.Text)
			return &model.TTSJob{ID: "job-1", UserID: userID, Status: model.JobQueued, Text: req.Text, VoiceType: model.VoiceStandard, VoiceID: "en-US-Wavenet-A"}, nil
		},
	}
	h := newTTSHandler(stub)

	body, _ := json.Marshal(map[string]any{"text": "hello", "speed": 1.0})
	req := authed(httptest.NewRequest(http.MethodPost, "/tts/submit", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	h.submitJob(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, "queued", resp["status"])
}

func TestSubmitJobHandlerValidation(t *testing.T) {
	h := newTTSHandler(&stubTTSService{
		submitFn: func(context.Context, string, service.SubmitJobRequest) (*model.TTSJob, error) {
			t.Fatal("service must not be called for invalid bodies")
			return nil, nil
		},
	})

	// Missing text
	req := authed(httptest.NewRequest(http.MethodPost, "/tts/submit", bytes.NewReader([]byte(`{"speed":1}`))), "user-1")
	rec := httptest.NewRecorder()
	h.submitJob(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Speed out of bounds
	req = authed(httptest.NewRequest(http.MethodPost, "/tts/submit", bytes.NewReader([]byte(`{"text":"hi","speed":3}`))), "user-1")
	rec = httptest.NewRecorder()
	h.submitJob(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobHandlerQuota(t *testing.T) {
	h := newTTSHandler(&stubTTSService{
		submitFn: func(context.Context, string, service.SubmitJobRequest) (*model.TTSJob, error) {
			return nil, repository.ErrInsufficientQuota
		},
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/tts/submit", bytes.NewReader([]byte(`{"text":"hi"}`))), "user-1")
	rec := httptest.NewRecorder()
	h.submitJob(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetStatusHandlerNotFound(t *testing.T) {
	h := newTTSHandler(&stubTTSService{
		statusFn: func(context.Context, string, string) (*model.TTSJob, error) { return nil, nil },
	})

	req := authed(httptest.NewRequest(http.MethodGet, "/tts/status/unknown", nil), "user-1")
	rec := httptest.NewRecorder()
	h.getStatus(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelHandler(t *testing.T) {
	h := newTTSHandler(&stubTTSService{
		cancelFn: func(_ context.Context, jobID, userID string) (bool, error) {
			return jobID == "job-1" && userID == "user-1", nil
		},
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/tts/cancel/job-1", nil), "user-1")
	rec := httptest.NewRecorder()
	h.cancelJob(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = authed(httptest.NewRequest(http.MethodPost, "/tts/cancel/job-2", nil), "user-1")
	rec = httptest.NewRecorder()
	h.cancelJob(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessPushHandler(t *testing.T) {
	processed := ""
	stub := &stubTTSService{
		processFn: func(_ context.Context, jobID string) (*model.TTSJob, error) {
			processed = jobID
			return &model.TTSJob{ID: jobID, Status: model.JobCompleted}, nil
		},
	}
	h := NewJobsHandler(stub, zerolog.Nop())

	data := base64.StdEncoding.EncodeToString([]byte(`{"job_id":"job-9"}`))
	envelope := fmt.Sprintf(`{"message":{"data":"%s","messageId":"m1"},"subscription":"s"}`, data)
	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader([]byte(envelope)))
	rec := httptest.NewRecorder()
	h.processJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "job-9", processed)
}

func TestProcessPushHandlerAcksSettledJobs(t *testing.T) {
	stub := &stubTTSService{
		processFn: func(context.Context, string) (*model.TTSJob, error) {
			return nil, repository.ErrJobNotFound
		},
	}
	h := NewJobsHandler(stub, zerolog.Nop())

	data := base64.StdEncoding.EncodeToString([]byte(`{"job_id":"gone"}`))
	envelope := fmt.Sprintf(`{"message":{"data":"%s","messageId":"m2"},"subscription":"s"}`, data)
	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader([]byte(envelope)))
	rec := httptest.NewRecorder()
	h.processJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code, "settled jobs must be acknowledged, not retried")
}

func TestProcessPushHandlerBadEnvelope(t *testing.T) {
	h := NewJobsHandler(&stubTTSService{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader([]byte(`{"message":{}}`)))
	rec := httptest.NewRecorder()
	h.processJob(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
