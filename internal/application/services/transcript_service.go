package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
	"github.com/crowndesk/receptionist/pkg/retry"
)

const (
	transcriptBufferSize  = 1024
	transcriptBatchSize   = 32
	transcriptFlushPeriod = 500 * time.Millisecond

	// maxFlushAttempts is the retry budget for one batch before the
	// owning call is flagged for manual review
	maxFlushAttempts = 5
)

// TranscriptRecorder is the asynchronous durable log of transcript entries
// and tool invocations. Appends never block a conversational turn: entries
// land in a buffered channel and a single worker batches them to the store.
// When the write path is down, batches are retried with the circuit breaker
// holding pressure off the database; a batch that exhausts its budget flags
// the call for review rather than silently dropping audit data.
type TranscriptRecorder struct {
	repo    repositories.CallRepository
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics

	entries     chan *entities.TranscriptEntry
	invocations chan *entities.ToolInvocation
	stop        chan struct{}
	stopped     chan struct{}
}

// pendingBatch is a group of entries for one call awaiting durability
type pendingBatch struct {
	entries  []*entities.TranscriptEntry
	attempts int
}

// NewTranscriptRecorder creates and starts a transcript recorder
func NewTranscriptRecorder(repo repositories.CallRepository, metrics *observability.Metrics) *TranscriptRecorder {
	r := &TranscriptRecorder{
		repo: repo,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "transcript-store",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		metrics:     metrics,
		entries:     make(chan *entities.TranscriptEntry, transcriptBufferSize),
		invocations: make(chan *entities.ToolInvocation, transcriptBufferSize),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Append enqueues one transcript entry. Never blocks beyond the channel
// buffer; a full buffer is treated like a failing store.
func (r *TranscriptRecorder) Append(entry *entities.TranscriptEntry) {
	select {
	case r.entries <- entry:
	default:
		log.Error().Str("call_id", entry.CallID).Int64("sequence", entry.Sequence).
			Msg("transcript buffer full, flagging call for review")
		r.flagCall(entry.CallID, "transcript buffer overflow")
	}
}

// RecordInvocation enqueues a tool invocation audit row
func (r *TranscriptRecorder) RecordInvocation(invocation *entities.ToolInvocation) {
	select {
	case r.invocations <- invocation:
	default:
		log.Error().Str("invocation_id", invocation.ID).Msg("invocation buffer full, dropping audit row")
	}
}

// Close drains buffered entries and stops the worker
func (r *TranscriptRecorder) Close() {
	close(r.stop)
	<-r.stopped
}

func (r *TranscriptRecorder) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(transcriptFlushPeriod)
	defer ticker.Stop()

	pending := make(map[string]*pendingBatch)

	for {
		select {
		case entry := <-r.entries:
			batch := pending[entry.CallID]
			if batch == nil {
				batch = &pendingBatch{}
				pending[entry.CallID] = batch
			}
			batch.entries = append(batch.entries, entry)
			if len(batch.entries) >= transcriptBatchSize {
				r.flush(entry.CallID, batch, pending)
			}

		case invocation := <-r.invocations:
			r.writeInvocation(invocation)

		case <-ticker.C:
			for callID, batch := range pending {
				r.flush(callID, batch, pending)
			}

		case <-r.stop:
			r.drain(pending)
			return
		}
	}
}

// flush attempts one durable write of a call's batch. On failure the batch
// stays pending for the next tick until its budget runs out.
func (r *TranscriptRecorder) flush(callID string, batch *pendingBatch, pending map[string]*pendingBatch) {
	if len(batch.entries) == 0 {
		delete(pending, callID)
		return
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return nil, r.repo.AppendTranscript(ctx, batch.entries)
	})
	if err == nil {
		observability.RecordTranscriptLag(context.Background(), r.metrics, time.Since(batch.entries[0].CreatedAt))
		delete(pending, callID)
		return
	}

	batch.attempts++
	log.Warn().Err(err).Str("call_id", callID).Int("attempts", batch.attempts).
		Int("buffered", len(batch.entries)).Msg("transcript flush failed")

	if batch.attempts >= maxFlushAttempts {
		log.Error().Str("call_id", callID).Msg("transcript retry budget exhausted")
		r.flagCall(callID, "transcript persistence failed")
		delete(pending, callID)
	}
}

func (r *TranscriptRecorder) writeInvocation(invocation *entities.ToolInvocation) {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, retry.Do(context.Background(), retry.DefaultConfig(), func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return r.repo.RecordToolInvocation(ctx, invocation)
		})
	})
	if err != nil {
		log.Error().Err(err).Str("invocation_id", invocation.ID).Msg("failed to persist tool invocation")
	}
}

// drain makes a final delivery attempt for everything still buffered
func (r *TranscriptRecorder) drain(pending map[string]*pendingBatch) {
	for {
		select {
		case entry := <-r.entries:
			batch := pending[entry.CallID]
			if batch == nil {
				batch = &pendingBatch{}
				pending[entry.CallID] = batch
			}
			batch.entries = append(batch.entries, entry)
		case invocation := <-r.invocations:
			r.writeInvocation(invocation)
		default:
			for callID, batch := range pending {
				r.flush(callID, batch, pending)
			}
			return
		}
	}
}

// flagCall marks a call for manual review using the call record id carried
// on transcript entries
func (r *TranscriptRecorder) flagCall(callID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.repo.FlagForReviewByID(ctx, callID, reason); err != nil {
			log.Error().Err(err).Str("call_id", callID).Msg("failed to flag call for review")
		}
	}()
}
