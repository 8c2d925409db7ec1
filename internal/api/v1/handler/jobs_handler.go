package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mrbuddhu/Speechix/internal/api/v1/dto"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"

	"github.com/rs/zerolog"
)

// JobsHandler receives Pub/Sub push deliveries for synthesis jobs.
type JobsHandler struct {
	tts    service.TTSService
	logger zerolog.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(tts service.TTSService, logger zerolog.Logger) *JobsHandler {
	return &JobsHandler{tts: tts, logger: logger}
}

// RegisterRoutes mounts the push endpoint behind the Pub/Sub auth middleware.
func (h *JobsHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/jobs/process", pubsubAuthMw(http.HandlerFunc(h.processJob)))
}

// processJob handles one push delivery. Non-retryable outcomes are
// acknowledged with 204 so Pub/Sub does not redeliver: a job that failed has
// its failure persisted, and a job that cannot be claimed is already settled.
func (h *JobsHandler) processJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var envelope dto.PushEnvelopeDTO
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Error().Err(err).Msg("Invalid Pub/Sub push envelope")
		http.Error(w, "Invalid Pub/Sub message format", http.StatusBadRequest)
		return
	}
	if envelope.Message.MessageID == "" {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	var payload struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil || payload.JobID == "" {
		h.logger.Error().Err(err).Str("messageId", envelope.Message.MessageID).Msg("Malformed job payload in push message")
		// Acknowledge: redelivery cannot fix a malformed payload.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.logger.Info().
		Str("messageId", envelope.Message.MessageID).
		Str("job_id", payload.JobID).
		Msg("Processing pushed synthesis job")

	if _, err := h.tts.ProcessJob(r.Context(), payload.JobID); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.logger.Info().Str("job_id", payload.JobID).Msg("Job no longer claimable; acknowledging push")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// The failure is persisted on the job; retrying the message would hit
		// a terminal state. Log and acknowledge.
		h.logger.Error().Err(err).Str("job_id", payload.JobID).Msg("Pushed job failed")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
