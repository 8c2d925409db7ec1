package model

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a TTS job. The lowercase tokens are
// persisted and exposed on the wire; do not change them.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Valid reports whether s is a known job status token.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// VoiceType selects between the standard voice pool and a user's cloned voice.
type VoiceType string

const (
	VoiceStandard VoiceType = "standard"
	VoiceCloned   VoiceType = "cloned"
)

func (v VoiceType) Valid() bool {
	return v == VoiceStandard || v == VoiceCloned
}

// ErrInvalidTransition is returned by the transition methods below when the
// job is not in a state that allows the requested transition.
var ErrInvalidTransition = errors.New("invalid job state transition")

// TTSJob is one text-to-speech request. Jobs are created in the queued state
// and mutated only by the orchestrator; they are never physically deleted.
//
// Invariants:
//   - ReferenceAudioID is set iff VoiceType == cloned.
//   - AudioURL/AudioDuration are set iff Status == completed.
//   - ErrorMessage is set iff Status == failed.
type TTSJob struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"user_id"`
	Status           JobStatus      `db:"status" json:"status"`
	Text             string         `db:"text" json:"text"`
	VoiceType        VoiceType      `db:"voice_type" json:"voice_type"`
	VoiceID          string         `db:"voice_id" json:"voice_id"`
	ReferenceAudioID *string        `db:"reference_audio_id" json:"reference_audio_id,omitempty"`
	AudioURL         string         `db:"audio_url" json:"audio_url,omitempty"`
	AudioDuration    float64        `db:"audio_duration" json:"audio_duration,omitempty"`
	ErrorMessage     string         `db:"error_message" json:"error_message,omitempty"`
	Metadata         map[string]any `db:"metadata" json:"metadata"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// StartProcessing moves the job into processing. A job already in processing
// may be re-claimed; this tolerates a crashed worker retrying its claim. The
// caller is responsible for holding the record lock while persisting.
func (j *TTSJob) StartProcessing() error {
	if j.Status != JobQueued && j.Status != JobProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobProcessing)
	}
	j.Status = JobProcessing
	return nil
}

// Complete records a successful synthesis outcome.
func (j *TTSJob) Complete(audioURL string, duration float64) error {
	if j.Status != JobProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobCompleted)
	}
	j.Status = JobCompleted
	j.AudioURL = audioURL
	j.AudioDuration = duration
	j.ErrorMessage = ""
	return nil
}

// Fail records a synthesis or storage failure. The audio fields stay unset.
func (j *TTSJob) Fail(message string) error {
	if j.Status != JobProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobFailed)
	}
	j.Status = JobFailed
	j.ErrorMessage = message
	return nil
}

// Cancel aborts a job that has not reached a terminal state yet.
func (j *TTSJob) Cancel() error {
	if j.Status != JobQueued && j.Status != JobProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobCancelled)
	}
	j.Status = JobCancelled
	return nil
}

// ReferenceAudio is a user-uploaded voice sample for cloning. Records are soft
// deactivated instead of deleted so historical jobs keep a valid reference.
type ReferenceAudio struct {
	ID            string         `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"user_id"`
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description,omitempty"`
	AudioURL      string         `db:"audio_url" json:"audio_url"`
	AudioDuration float64        `db:"audio_duration" json:"audio_duration"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	IsPublic      bool           `db:"is_public" json:"is_public"`
	Metadata      map[string]any `db:"metadata" json:"metadata"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
