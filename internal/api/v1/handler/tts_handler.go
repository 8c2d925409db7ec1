package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mrbuddhu/Speechix/internal/api/v1/dto"
	"github.com/mrbuddhu/Speechix/internal/middleware"
	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// TTSHandler handles the /tts endpoints.
type TTSHandler struct {
	tts           service.TTSService
	validate      *validator.Validate
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewTTSHandler creates a new TTSHandler.
func NewTTSHandler(tts service.TTSService, validate *validator.Validate, maxUploadSize int64, logger zerolog.Logger) *TTSHandler {
	return &TTSHandler{
		tts:           tts,
		validate:      validate,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// RegisterRoutes mounts the TTS routes.
func (h *TTSHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/tts/submit", authMw(http.HandlerFunc(h.submitJob)))
	mux.Handle("/tts/status/", authMw(http.HandlerFunc(h.getStatus)))
	mux.Handle("/tts/cancel/", authMw(http.HandlerFunc(h.cancelJob)))
	mux.Handle("/tts/history", authMw(http.HandlerFunc(h.listHistory)))
	mux.Handle("/tts/voices", authMw(http.HandlerFunc(h.listVoices)))
	mux.Handle("/tts/usage", authMw(http.HandlerFunc(h.getUsage)))
	mux.Handle("/tts/reference-audios/upload", authMw(http.HandlerFunc(h.uploadReferenceAudio)))
	mux.Handle("/tts/reference-audios", authMw(http.HandlerFunc(h.listReferenceAudios)))
	mux.Handle("/tts/reference-audios/", authMw(http.HandlerFunc(h.deleteReferenceAudio)))
}

// writeServiceError maps orchestrator errors onto HTTP status codes.
func (h *TTSHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrReferenceAudioRequired),
		errors.Is(err, service.ErrInvalidReferenceAudio),
		errors.Is(err, service.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrInsufficientQuota),
		errors.Is(err, service.ErrVoiceCloneLimit):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, repository.ErrNoActiveSubscription):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error().Err(err).Msg("TTS request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// submitJob godoc
// @Summary Submit a TTS job
// @Description Validates the request, checks quota, and enqueues a synthesis job.
// @Tags tts
// @Accept json
// @Produce json
// @Param job body dto.SubmitJobDTO true "Job request"
// @Success 202 {object} dto.JobResponseDTO
// @Failure 400 {string} string "Invalid request"
// @Failure 429 {string} string "Quota exceeded"
// @Router /tts/submit [post]
func (h *TTSHandler) submitJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var body dto.SubmitJobDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.tts.SubmitJob(r.Context(), userID, service.SubmitJobRequest{
		Text:             body.Text,
		VoiceType:        model.VoiceType(body.VoiceType),
		VoiceID:          body.VoiceID,
		ReferenceAudioID: body.ReferenceAudioID,
		Speed:            body.Speed,
		Pitch:            body.Pitch,
		Emotion:          body.Emotion,
		Language:         body.Language,
		Metadata:         body.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.NewJobResponse(job))
}

// getStatus godoc
// @Summary Get job status
// @Tags tts
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} dto.JobResponseDTO
// @Failure 404 {string} string "Job not found"
// @Router /tts/status/{jobId} [get]
func (h *TTSHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/tts/status/")
	job, err := h.tts.GetJobStatus(r.Context(), jobID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewJobResponse(job))
}

// cancelJob godoc
// @Summary Cancel a job
// @Description Cancels a queued or processing job owned by the caller.
// @Tags tts
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} dto.CancelResponseDTO
// @Failure 404 {string} string "Job not found or not cancellable"
// @Router /tts/cancel/{jobId} [post]
func (h *TTSHandler) cancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/tts/cancel/")
	ok, err := h.tts.CancelJob(r.Context(), jobID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Job not found or not cancellable", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelResponseDTO{JobID: jobID, Status: string(model.JobCancelled)})
}

// listHistory godoc
// @Summary List the caller's jobs
// @Tags tts
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.JobListResponseDTO
// @Router /tts/history [get]
func (h *TTSHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	status := model.JobStatus(r.URL.Query().Get("status"))

	jobs, total, err := h.tts.ListUserJobs(r.Context(), userID, status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := dto.JobListResponseDTO{
		Jobs:       make([]dto.JobResponseDTO, 0, len(jobs)),
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Limit:      limit,
		Offset:     offset,
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, dto.NewJobResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// listVoices godoc
// @Summary List standard voices
// @Tags tts
// @Produce json
// @Param language query string false "Filter by language"
// @Param gender query string false "Filter by gender"
// @Router /tts/voices [get]
func (h *TTSHandler) listVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	voices := h.tts.AvailableVoices(r.URL.Query().Get("language"), r.URL.Query().Get("gender"))
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// getUsage godoc
// @Summary Get the caller's usage snapshot
// @Tags tts
// @Produce json
// @Success 200 {object} service.UsageReport
// @Router /tts/usage [get]
func (h *TTSHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	report, err := h.tts.Usage(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// uploadReferenceAudio godoc
// @Summary Upload a reference audio sample
// @Description Registers a voice-clone sample. Multipart form with a "file" part.
// @Tags tts
// @Accept mpfd
// @Produce json
// @Success 201 {object} dto.ReferenceAudioResponseDTO
// @Failure 400 {string} string "Unsupported format"
// @Failure 429 {string} string "Voice clone limit reached"
// @Router /tts/reference-audios/upload [post]
func (h *TTSHandler) uploadReferenceAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form or file too large", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	isPublic := r.FormValue("is_public") == "true"

	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			http.Error(w, "Invalid metadata JSON", http.StatusBadRequest)
			return
		}
	}

	audio, err := h.tts.CreateReferenceAudio(r.Context(), userID, data, header.Filename, name, r.FormValue("description"), isPublic, metadata)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewReferenceAudioResponse(audio))
}

// listReferenceAudios godoc
// @Summary List the caller's reference audios
// @Tags tts
// @Produce json
// @Param is_active query bool false "Active flag filter (default true)"
// @Success 200 {object} dto.ReferenceAudioListResponseDTO
// @Router /tts/reference-audios [get]
func (h *TTSHandler) listReferenceAudios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	isActive := r.URL.Query().Get("is_active") != "false"
	limit, offset := pagination(r)

	audios, total, err := h.tts.ListReferenceAudios(r.Context(), userID, isActive, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := dto.ReferenceAudioListResponseDTO{Audios: make([]dto.ReferenceAudioResponseDTO, 0, len(audios)), Total: total, Limit: limit, Offset: offset}
	for i := range audios {
		resp.Audios = append(resp.Audios, dto.NewReferenceAudioResponse(&audios[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteReferenceAudio godoc
// @Summary Deactivate a reference audio
// @Description Soft-deletes the record; the stored sample is kept.
// @Tags tts
// @Param audioId path string true "Reference audio ID"
// @Success 204 {string} string "Deactivated"
// @Failure 404 {string} string "Reference audio not found"
// @Router /tts/reference-audios/{audioId} [delete]
func (h *TTSHandler) deleteReferenceAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	audioID := strings.TrimPrefix(r.URL.Path, "/tts/reference-audios/")
	ok, err := h.tts.DeleteReferenceAudio(r.Context(), audioID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Reference audio not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
