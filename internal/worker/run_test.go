package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mrbuddhu/Speechix/internal/config"
	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/pgmq"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"
	"github.com/mrbuddhu/Speechix/internal/synthesis"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeQueue struct {
	dlqSends [][]byte
	deletes  []int64
}

func (q *fakeQueue) ReadWithPoll(context.Context, string, int, int) ([]*pgmq.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Send(_ context.Context, _ string, payload []byte) error {
	q.dlqSends = append(q.dlqSends, payload)
	return nil
}

func (q *fakeQueue) Delete(_ context.Context, _ string, msgIDs []int64) error {
	q.deletes = append(q.deletes, msgIDs...)
	return nil
}

// processorStub only implements ProcessJob meaningfully; the worker never
// touches the rest of the orchestrator surface.
type processorStub struct {
	calls int
	err   error
}

func (s *processorStub) ProcessJob(context.Context, string) (*model.TTSJob, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.TTSJob{Status: model.JobCompleted}, nil
}

func (s *processorStub) SubmitJob(context.Context, string, service.SubmitJobRequest) (*model.TTSJob, error) {
	return nil, nil
}

func (s *processorStub) GetJobStatus(context.Context, string, string) (*model.TTSJob, error) {
	return nil, nil
}

func (s *processorStub) CancelJob(context.Context, string, string) (bool, error) { return false, nil }

func (s *processorStub) ListUserJobs(context.Context, string, model.JobStatus, int, int) ([]model.TTSJob, int, error) {
	return nil, 0, nil
}

func (s *processorStub) CreateReferenceAudio(context.Context, string, []byte, string, string, string, bool, map[string]any) (*model.ReferenceAudio, error) {
	return nil, nil
}

func (s *processorStub) DeleteReferenceAudio(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *processorStub) ListReferenceAudios(context.Context, string, bool, int, int) ([]model.ReferenceAudio, int, error) {
	return nil, 0, nil
}

func (s *processorStub) Usage(context.Context, string) (*service.UsageReport, error) {
	return nil, nil
}

func (s *processorStub) AvailableVoices(string, string) []synthesis.Voice { return nil }

func workerConfig() *config.Config {
	return &config.Config{
		SynthesisQueueName:      "synthesis_queue",
		DeadLetterQueueName:     "synthesis_queue_dlq",
		WorkerMaxRetries:        2,
		WorkerBackoffInitialSec: 0,
		WorkerBackoffMaxSec:     1,
	}
}

func message(payload string) *pgmq.Message {
	return &pgmq.Message{ID: 1, Data: []byte(payload)}
}

func TestHandleMessageSuccess(t *testing.T) {
	queue := &fakeQueue{}
	stub := &processorStub{}

	handleMessage(context.Background(), workerConfig(), zerolog.Nop(), queue, stub, "synthesis_queue", message(`{"job_id":"j1"}`))

	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, queue.dlqSends)
	assert.Equal(t, []int64{1}, queue.deletes)
}

func TestHandleMessageAcksPersistedFailure(t *testing.T) {
	queue := &fakeQueue{}
	stub := &processorStub{err: fmt.Errorf("%w: %w", service.ErrJobFailed, errors.New("engine exploded"))}

	handleMessage(context.Background(), workerConfig(), zerolog.Nop(), queue, stub, "synthesis_queue", message(`{"job_id":"j1"}`))

	assert.Equal(t, 1, stub.calls, "a settled failure must not be retried")
	assert.Empty(t, queue.dlqSends, "a settled failure must not go to the DLQ")
	assert.Equal(t, []int64{1}, queue.deletes)
}

func TestHandleMessageAcksUnclaimableJob(t *testing.T) {
	queue := &fakeQueue{}
	stub := &processorStub{err: repository.ErrJobNotFound}

	handleMessage(context.Background(), workerConfig(), zerolog.Nop(), queue, stub, "synthesis_queue", message(`{"job_id":"gone"}`))

	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, queue.dlqSends)
	assert.Equal(t, []int64{1}, queue.deletes)
}

func TestHandleMessageTransientErrorRetriesThenDLQ(t *testing.T) {
	queue := &fakeQueue{}
	stub := &processorStub{err: errors.New("connection refused")}

	handleMessage(context.Background(), workerConfig(), zerolog.Nop(), queue, stub, "synthesis_queue", message(`{"job_id":"j1"}`))

	assert.Equal(t, 2, stub.calls, "transient errors retry up to the configured limit")
	assert.Len(t, queue.dlqSends, 1, "exhausted retries move the message to the DLQ")
	assert.Equal(t, []int64{1}, queue.deletes)
}

func TestHandleMessageMalformedPayload(t *testing.T) {
	queue := &fakeQueue{}
	stub := &processorStub{}

	handleMessage(context.Background(), workerConfig(), zerolog.Nop(), queue, stub, "synthesis_queue", message(`not-json`))

	assert.Zero(t, stub.calls)
	assert.Empty(t, queue.dlqSends)
	assert.Equal(t, []int64{1}, queue.deletes)
}
