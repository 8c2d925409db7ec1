package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/pubsub"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/storage"
	"github.com/mrbuddhu/Speechix/internal/synthesis"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrValidation marks a malformed request (caller's fault).
	ErrValidation = errors.New("invalid request")
	// ErrReferenceAudioRequired is returned when a cloned-voice job supplies
	// no reference audio id.
	ErrReferenceAudioRequired = errors.New("reference audio id is required for cloned voice")
	// ErrInvalidReferenceAudio is returned when the reference audio does not
	// resolve to an active record owned by the caller.
	ErrInvalidReferenceAudio = errors.New("invalid or inactive reference audio")
	// ErrVoiceCloneLimit is returned when the user's active reference audio
	// count has reached max_voice_clones.
	ErrVoiceCloneLimit = errors.New("maximum number of voice clones reached")
	// ErrUnsupportedFormat is returned for uploads whose filename extension is
	// not in the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrJobFailed marks a processing error whose outcome has already been
	// persisted on the job. Dispatchers must not retry: the job is terminal.
	ErrJobFailed = errors.New("job processing failed")
)

// allowedAudioExtensions is checked case-insensitively on the extension only,
// not file content. Weak by design; the synthesis engine is the real gate.
var allowedAudioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
}

// referenceAudioDuration is the estimated sample duration in seconds. Real
// duration probing belongs to the synthesis collaborator.
const referenceAudioDuration = 10.0

// SubmitJobRequest carries one synthesis request past HTTP validation.
type SubmitJobRequest struct {
	Text             string
	VoiceType        model.VoiceType
	VoiceID          string
	ReferenceAudioID string
	Speed            float64
	Pitch            float64
	Emotion          string
	Language         string
	Metadata         map[string]any
}

// UsageReport is the user-facing usage snapshot.
type UsageReport struct {
	PlanID                string    `json:"plan_id"`
	DailyCharacterUsage   int       `json:"daily_character_usage"`
	DailyCharacterLimit   int       `json:"daily_character_limit"`
	MonthlyCharacterUsage int       `json:"monthly_character_usage"`
	MonthlyCharacterLimit int       `json:"monthly_character_limit"`
	ActiveVoiceClones     int       `json:"active_voice_clones"`
	MaxVoiceClones        int       `json:"max_voice_clones"`
	CurrentPeriodStart    time.Time `json:"current_period_start"`
	CurrentPeriodEnd      time.Time `json:"current_period_end"`
}

// TTSService is the job orchestrator: admission, synthesis dispatch, outcome
// recording, and the reference audio registry.
type TTSService interface {
	// SubmitJob validates the request, checks quota, and creates the job in
	// the queued state. Admission failures never create a job record.
	SubmitJob(ctx context.Context, userID string, req SubmitJobRequest) (*model.TTSJob, error)
	// ProcessJob claims the job, invokes synthesis, stores the audio, and
	// records the outcome. Safe to call concurrently, redundantly, or late;
	// losers of the claim race get repository.ErrJobNotFound.
	ProcessJob(ctx context.Context, jobID string) (*model.TTSJob, error)
	// GetJobStatus returns the job, ownership-scoped when userID is non-empty;
	// nil when not found.
	GetJobStatus(ctx context.Context, jobID, userID string) (*model.TTSJob, error)
	// CancelJob returns false for unknown jobs, foreign jobs, and jobs already
	// in a terminal state.
	CancelJob(ctx context.Context, jobID, userID string) (bool, error)
	ListUserJobs(ctx context.Context, userID string, status model.JobStatus, limit, offset int) ([]model.TTSJob, int, error)

	CreateReferenceAudio(ctx context.Context, userID string, fileData []byte, filename, name, description string, isPublic bool, metadata map[string]any) (*model.ReferenceAudio, error)
	DeleteReferenceAudio(ctx context.Context, audioID, userID string) (bool, error)
	ListReferenceAudios(ctx context.Context, userID string, isActive bool, limit, offset int) ([]model.ReferenceAudio, int, error)

	Usage(ctx context.Context, userID string) (*UsageReport, error)
	AvailableVoices(language, gender string) []synthesis.Voice
}

type ttsService struct {
	jobs      repository.JobRepository
	subs      repository.SubscriptionRepository
	refAudios repository.ReferenceAudioRepository
	store     storage.ContentStore
	engine    synthesis.Engine
	publisher pubsub.Publisher
	topic     string

	engineTimeout time.Duration
	urlExpiry     time.Duration
	maxTextLength int

	ttsLogger zerolog.Logger
}

// NewTTSService creates the orchestrator.
func NewTTSService(
	jobs repository.JobRepository,
	subs repository.SubscriptionRepository,
	refAudios repository.ReferenceAudioRepository,
	store storage.ContentStore,
	engine synthesis.Engine,
	publisher pubsub.Publisher,
	topic string,
	engineTimeout time.Duration,
	urlExpiry time.Duration,
	maxTextLength int,
	logger zerolog.Logger,
) TTSService {
	return &ttsService{
		jobs:          jobs,
		subs:          subs,
		refAudios:     refAudios,
		store:         store,
		engine:        engine,
		publisher:     publisher,
		topic:         topic,
		engineTimeout: engineTimeout,
		urlExpiry:     urlExpiry,
		maxTextLength: maxTextLength,
		ttsLogger:     logger.With().Str("service", "TTSService").Logger(),
	}
}

// SubmitJob admits a synthesis request.
func (s *ttsService) SubmitJob(ctx context.Context, userID string, req SubmitJobRequest) (*model.TTSJob, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", ErrValidation)
	}
	textLen := utf8.RuneCountInString(req.Text)
	if s.maxTextLength > 0 && textLen > s.maxTextLength {
		return nil, fmt.Errorf("%w: text exceeds maximum length of %d characters", ErrValidation, s.maxTextLength)
	}
	if req.VoiceType == "" {
		req.VoiceType = model.VoiceStandard
	}
	if !req.VoiceType.Valid() {
		return nil, fmt.Errorf("%w: unknown voice type %q", ErrValidation, req.VoiceType)
	}

	// Quota check only; usage is consumed when the job completes. Concurrent
	// submissions can both pass before either records usage — transient
	// over-admission is an accepted tradeoff of consumption-based accounting.
	if err := s.subs.CheckQuota(ctx, userID, textLen, time.Now()); err != nil {
		return nil, err
	}

	voiceID := req.VoiceID
	var referenceAudioID *string
	switch req.VoiceType {
	case model.VoiceCloned:
		if req.ReferenceAudioID == "" {
			return nil, ErrReferenceAudioRequired
		}
		audio, err := s.refAudios.GetActive(ctx, req.ReferenceAudioID, userID)
		if err != nil {
			return nil, err
		}
		if audio == nil {
			return nil, ErrInvalidReferenceAudio
		}
		referenceAudioID = &audio.ID
		voiceID = "cloned-" + audio.ID
	case model.VoiceStandard:
		if voiceID == "" {
			voiceID = synthesis.PickStandardVoice()
		}
	}

	// Caller-supplied metadata keys win over the synthesis parameters.
	metadata := map[string]any{
		"speed":    req.Speed,
		"pitch":    req.Pitch,
		"emotion":  req.Emotion,
		"language": req.Language,
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	job := &model.TTSJob{
		UserID:           userID,
		Status:           model.JobQueued,
		Text:             req.Text,
		VoiceType:        req.VoiceType,
		VoiceID:          voiceID,
		ReferenceAudioID: referenceAudioID,
		Metadata:         metadata,
	}
	created, err := s.jobs.CreateJob(ctx, job)
	if err != nil {
		s.ttsLogger.Error().Err(err).Str("user_id", userID).Msg("Failed to create TTS job")
		return nil, fmt.Errorf("failed to create TTS job: %w", err)
	}

	s.dispatch(ctx, created.ID)
	return created, nil
}

// dispatch publishes the job id for asynchronous processing. A publish
// failure is logged, not returned: the job is admitted and an operator can
// re-dispatch it.
func (s *ttsService) dispatch(ctx context.Context, jobID string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(struct {
		JobID string `json:"job_id"`
	}{JobID: jobID})
	if err != nil {
		s.ttsLogger.Error().Err(err).Str("job_id", jobID).Msg("Failed to marshal dispatch payload")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.ttsLogger.Error().Err(err).Str("job_id", jobID).Str("topic", s.topic).Msg("Failed to publish synthesis job")
	}
}

// ProcessJob runs one job end to end. The claim serializes concurrent
// processors; everything after the claim persists its outcome before
// returning (persist-then-rethrow on failure).
func (s *ttsService) ProcessJob(ctx context.Context, jobID string) (*model.TTSJob, error) {
	job, err := s.jobs.ClaimJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	params := paramsFromMetadata(job.Metadata)
	synthCtx, cancel := context.WithTimeout(ctx, s.engineTimeout)
	defer cancel()

	result, err := s.engine.Synthesize(synthCtx, job.Text, job.VoiceID, params)
	if err != nil {
		return nil, s.failJob(ctx, jobID, fmt.Errorf("synthesis failed: %w", err))
	}

	key := fmt.Sprintf("audios/%s_%d.wav", job.ID, time.Now().Unix())
	if err := s.store.Put(ctx, key, result.Audio); err != nil {
		return nil, s.failJob(ctx, jobID, fmt.Errorf("storing audio: %w", err))
	}
	audioURL, err := s.store.URL(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, s.failJob(ctx, jobID, fmt.Errorf("resolving audio URL: %w", err))
	}

	if err := s.jobs.CompleteJob(ctx, jobID, audioURL, result.Duration); err != nil {
		// The job left processing underneath us (e.g. cancelled mid-flight).
		// No completion, no usage.
		return nil, err
	}

	// Usage is charged for the original submitted text, tied to the completed
	// transition and applied exactly once.
	if err := s.subs.RecordUsage(ctx, job.UserID, utf8.RuneCountInString(job.Text)); err != nil {
		s.ttsLogger.Error().Err(err).Str("job_id", jobID).Str("user_id", job.UserID).Msg("Failed to record usage for completed job")
	}

	return s.jobs.GetJob(ctx, jobID, "")
}

// failJob persists the FAILED state with a human-readable cause and returns
// the cause wrapped in ErrJobFailed so callers can tell a settled failure
// from a transient one.
func (s *ttsService) failJob(ctx context.Context, jobID string, cause error) error {
	if err := s.jobs.FailJob(ctx, jobID, cause.Error()); err != nil {
		s.ttsLogger.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist job failure")
	}
	s.ttsLogger.Error().Err(cause).Str("job_id", jobID).Msg("TTS job failed")
	return fmt.Errorf("%w: %w", ErrJobFailed, cause)
}

func paramsFromMetadata(meta map[string]any) synthesis.Params {
	p := synthesis.Params{Speed: 1.0}
	if meta == nil {
		return p
	}
	if v, ok := meta["speed"].(float64); ok && v != 0 {
		p.Speed = v
	}
	if v, ok := meta["pitch"].(float64); ok {
		p.Pitch = v
	}
	if v, ok := meta["emotion"].(string); ok {
		p.Emotion = v
	}
	if v, ok := meta["language"].(string); ok {
		p.Language = v
	}
	return p
}

func (s *ttsService) GetJobStatus(ctx context.Context, jobID, userID string) (*model.TTSJob, error) {
	return s.jobs.GetJob(ctx, jobID, userID)
}

func (s *ttsService) CancelJob(ctx context.Context, jobID, userID string) (bool, error) {
	return s.jobs.CancelJob(ctx, jobID, userID)
}

func (s *ttsService) ListUserJobs(ctx context.Context, userID string, status model.JobStatus, limit, offset int) ([]model.TTSJob, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.jobs.ListJobsByUser(ctx, userID, status, limit, offset)
}

// CreateReferenceAudio uploads a voice-clone sample and registers it.
func (s *ttsService) CreateReferenceAudio(ctx context.Context, userID string, fileData []byte, filename, name, description string, isPublic bool, metadata map[string]any) (*model.ReferenceAudio, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, repository.ErrNoActiveSubscription
	}

	active, err := s.refAudios.CountActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active >= sub.MaxVoiceClones {
		return nil, fmt.Errorf("%w (%d)", ErrVoiceCloneLimit, sub.MaxVoiceClones)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	key := fmt.Sprintf("reference_audios/%s%s", uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, fileData); err != nil {
		return nil, fmt.Errorf("uploading reference audio: %w", err)
	}
	audioURL, err := s.store.URL(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("resolving reference audio URL: %w", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	audio := &model.ReferenceAudio{
		UserID:        userID,
		Name:          name,
		Description:   description,
		AudioURL:      audioURL,
		AudioDuration: referenceAudioDuration,
		IsActive:      true,
		IsPublic:      isPublic,
		Metadata:      metadata,
	}
	created, err := s.refAudios.Create(ctx, audio)
	if err != nil {
		s.ttsLogger.Error().Err(err).Str("user_id", userID).Msg("Failed to create reference audio record")
		return nil, fmt.Errorf("failed to create reference audio: %w", err)
	}
	return created, nil
}

// DeleteReferenceAudio soft-deactivates; the stored sample is kept for jobs
// that reference it.
func (s *ttsService) DeleteReferenceAudio(ctx context.Context, audioID, userID string) (bool, error) {
	return s.refAudios.Deactivate(ctx, audioID, userID)
}

func (s *ttsService) ListReferenceAudios(ctx context.Context, userID string, isActive bool, limit, offset int) ([]model.ReferenceAudio, int, error) {
	return s.refAudios.ListByUser(ctx, userID, isActive, limit, offset)
}

// Usage assembles the user's quota snapshot.
func (s *ttsService) Usage(ctx context.Context, userID string) (*UsageReport, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, repository.ErrNoActiveSubscription
	}
	active, err := s.refAudios.CountActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UsageReport{
		PlanID:                sub.PlanID,
		DailyCharacterUsage:   sub.DailyCharacterUsage,
		DailyCharacterLimit:   sub.DailyCharacterLimit,
		MonthlyCharacterUsage: sub.MonthlyCharacterUsage,
		MonthlyCharacterLimit: sub.MonthlyCharacterLimit,
		ActiveVoiceClones:     active,
		MaxVoiceClones:        sub.MaxVoiceClones,
		CurrentPeriodStart:    sub.CurrentPeriodStart,
		CurrentPeriodEnd:      sub.CurrentPeriodEnd,
	}, nil
}

func (s *ttsService) AvailableVoices(language, gender string) []synthesis.Voice {
	return synthesis.StandardVoices(language, gender)
}
