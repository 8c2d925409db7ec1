package dto

import (
	"time"

	"github.com/mrbuddhu/Speechix/internal/model"
)

// SubmitJobDTO is the body of POST /tts/submit.
type SubmitJobDTO struct {
	Text             string         `json:"text" validate:"required,max=5000"`
	VoiceType        string         `json:"voice_type" validate:"omitempty,oneof=standard cloned"`
	VoiceID          string         `json:"voice_id,omitempty"`
	ReferenceAudioID string         `json:"reference_audio_id,omitempty"`
	Speed            float64        `json:"speed" validate:"omitempty,gte=0.5,lte=2"`
	Pitch            float64        `json:"pitch" validate:"gte=-20,lte=20"`
	Emotion          string         `json:"emotion,omitempty"`
	Language         string         `json:"language,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// JobResponseDTO is returned for a single TTS job.
type JobResponseDTO struct {
	JobID            string         `json:"job_id"`
	Status           string         `json:"status"`
	Text             string         `json:"text"`
	VoiceType        string         `json:"voice_type"`
	VoiceID          string         `json:"voice_id"`
	ReferenceAudioID *string        `json:"reference_audio_id,omitempty"`
	AudioURL         string         `json:"audio_url,omitempty"`
	AudioDuration    float64        `json:"audio_duration,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewJobResponse maps a job onto the wire shape.
func NewJobResponse(j *model.TTSJob) JobResponseDTO {
	return JobResponseDTO{
		JobID:            j.ID,
		Status:           string(j.Status),
		Text:             j.Text,
		VoiceType:        string(j.VoiceType),
		VoiceID:          j.VoiceID,
		ReferenceAudioID: j.ReferenceAudioID,
		AudioURL:         j.AudioURL,
		AudioDuration:    j.AudioDuration,
		ErrorMessage:     j.ErrorMessage,
		Metadata:         j.Metadata,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// JobListResponseDTO is the paginated job history.
type JobListResponseDTO struct {
	Jobs       []JobResponseDTO `json:"jobs"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// CancelResponseDTO is returned by POST /tts/cancel/{id}.
type CancelResponseDTO struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ReferenceAudioResponseDTO is returned for one reference audio record.
type ReferenceAudioResponseDTO struct {
	AudioID       string         `json:"audio_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	AudioURL      string         `json:"audio_url"`
	AudioDuration float64        `json:"audio_duration"`
	IsActive      bool           `json:"is_active"`
	IsPublic      bool           `json:"is_public"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewReferenceAudioResponse maps a record onto the wire shape.
func NewReferenceAudioResponse(a *model.ReferenceAudio) ReferenceAudioResponseDTO {
	return ReferenceAudioResponseDTO{
		AudioID:       a.ID,
		Name:          a.Name,
		Description:   a.Description,
		AudioURL:      a.AudioURL,
		AudioDuration: a.AudioDuration,
		IsActive:      a.IsActive,
		IsPublic:      a.IsPublic,
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt,
	}
}

// ReferenceAudioListResponseDTO is the paginated reference audio list.
type ReferenceAudioListResponseDTO struct {
	Audios []ReferenceAudioResponseDTO `json:"audios"`
	Total  int                         `json:"total"`
	Limit  int                         `json:"limit"`
	Offset int                         `json:"offset"`
}

// PushEnvelopeDTO is the standard Pub/Sub push delivery wrapper.
type PushEnvelopeDTO struct {
	Message struct {
		Data      []byte `json:"data"` // base64-decoded by encoding/json
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
