// Package worker drains the pgmq synthesis queue and drives jobs through the
// orchestrator. It is the local/dev counterpart of the Pub/Sub push endpoint.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mrbuddhu/Speechix/internal/config"
	"github.com/mrbuddhu/Speechix/internal/pgmq"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"

	"github.com/rs/zerolog"
)

type jobMessage struct {
	JobID string `json:"job_id"`
}

// queueClient is the subset of the pgmq client the worker needs.
type queueClient interface {
	ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	Send(ctx context.Context, queue string, payload []byte) error
	Delete(ctx context.Context, queue string, msgIDs []int64) error
}

// Run polls the synthesis queue until ctx is cancelled. Transient errors are
// retried with exponential backoff and go to the dead-letter queue when
// exhausted. A job that cannot be claimed (already processed, cancelled,
// unknown) or whose failure is already persisted just gets its message
// acknowledged.
func Run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, client queueClient, tts service.TTSService) error {
	queue := cfg.SynthesisQueueName
	logger.Info().Str("queue", queue).Msg("Starting synthesis worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down synthesis worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.WorkerPollTimeoutSec, cfg.WorkerPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading synthesis queue")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			handleMessage(ctx, cfg, logger, client, tts, queue, msg)
		}
	}
}

func handleMessage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, client queueClient, tts service.TTSService, queue string, msg *pgmq.Message) {
	var payload jobMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.JobID == "" {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Malformed synthesis message; deleting")
		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Msg("Error deleting malformed message")
		}
		return
	}
	logger.Info().Int64("msg_id", msg.ID).Str("job_id", payload.JobID).Msg("Received synthesis job")

	backoff := time.Duration(cfg.WorkerBackoffInitialSec) * time.Second
	var lastErr error
	for attempt := 1; attempt <= cfg.WorkerMaxRetries; attempt++ {
		_, err := tts.ProcessJob(ctx, payload.JobID)
		if err == nil {
			lastErr = nil
			break
		}
		if errors.Is(err, repository.ErrJobNotFound) {
			// Claimed elsewhere, cancelled, or already finished. Nothing to do.
			logger.Info().Str("job_id", payload.JobID).Msg("Job no longer claimable; acknowledging")
			lastErr = nil
			break
		}
		if errors.Is(err, service.ErrJobFailed) {
			// The failure is recorded on the job, which is now terminal;
			// a retry could only observe ErrJobNotFound.
			logger.Warn().Err(err).Str("job_id", payload.JobID).Msg("Job failed with outcome persisted; acknowledging")
			lastErr = nil
			break
		}
		lastErr = err
		logger.Error().Err(err).Int("attempt", attempt).Str("job_id", payload.JobID).Msg("Job processing failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if max := time.Duration(cfg.WorkerBackoffMaxSec) * time.Second; backoff > max {
			backoff = max
		}
	}

	if lastErr != nil {
		logger.Warn().
			Int("attempts", cfg.WorkerMaxRetries).
			Str("job_id", payload.JobID).
			Err(lastErr).
			Msg("Exhausted all processing retries; moving job to DLQ")
		if err := client.Send(ctx, cfg.DeadLetterQueueName, msg.Data); err != nil {
			logger.Error().Err(err).Str("dlq", cfg.DeadLetterQueueName).Msg("Failed to send message to dead-letter queue")
		}
	}

	if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting synthesis message")
	}
}
