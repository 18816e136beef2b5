package jobs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/infrastructure/imagegen"
	"stylize.backend/internal/infrastructure/metrics"
	"stylize.backend/internal/infrastructure/queue"
	"stylize.backend/internal/usecases"
	"stylize.backend/pkg/logger"
)

const dequeueWait = 5 * time.Second

// ImageGenerator produces a stylized image from a source image and prompt
type ImageGenerator interface {
	FetchImage(ctx context.Context, url string) ([]byte, string, error)
	EditImage(ctx context.Context, image []byte, contentType, prompt string) ([]byte, error)
}

// JobSource delivers stylize job envelopes
type JobSource interface {
	Dequeue(ctx context.Context, name string, timeout time.Duration) (*queue.Envelope, error)
}

// StylizeWorker consumes admitted stylize jobs and drives each request
// from queued through generating to completed or error. The queued to
// generating transition doubles as the claim: a stale result means another
// worker (or a previous run of this one) owns the job.
type StylizeWorker struct {
	source    JobSource
	generator ImageGenerator
	usecase   *usecases.GenerationUsecase
	stop      chan struct{}
}

func NewStylizeWorker(source JobSource, generator ImageGenerator, usecase *usecases.GenerationUsecase) *StylizeWorker {
	return &StylizeWorker{
		source:    source,
		generator: generator,
		usecase:   usecase,
		stop:      make(chan struct{}),
	}
}

// Start consumes jobs until the context is cancelled or Stop is called
func (w *StylizeWorker) Start(ctx context.Context) {
	logger.Info(ctx, "stylize worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "stylize worker stopped, context cancelled")
			return
		case <-w.stop:
			logger.Info(ctx, "stylize worker stopped")
			return
		default:
		}

		env, err := w.source.Dequeue(ctx, queue.StylizeImageQueue, dequeueWait)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error(ctx, "dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		w.process(ctx, env)
	}
}

func (w *StylizeWorker) Stop() {
	close(w.stop)
}

func (w *StylizeWorker) process(ctx context.Context, env *queue.Envelope) {
	var job entities.StylizeJob
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		logger.Error(ctx, "discarding malformed job payload",
			zap.String("job_id", env.JobID), zap.Error(err))
		return
	}
	ctx = logger.WithQuoteID(ctx, job.QuoteID)

	if err := w.usecase.MarkGenerating(ctx, job.QuoteID); err != nil {
		if errors.Is(err, domainerrors.ErrStaleStatus) {
			// Redelivery of a job someone already claimed or finished.
			logger.Info(ctx, "skipping job, request no longer queued",
				zap.String("job_id", env.JobID))
			return
		}
		logger.Error(ctx, "failed to claim job", zap.Error(err))
		return
	}

	logger.Info(ctx, "generating image",
		zap.String("job_id", env.JobID),
		zap.String("owner_id", job.OwnerID),
	)

	resultURL, err := w.generate(ctx, job)
	if err != nil {
		logger.Error(ctx, "generation failed", zap.Error(err))
		metrics.JobsCompleted.WithLabelValues("error").Inc()
		if failErr := w.usecase.FailGeneration(ctx, job.QuoteID, err.Error()); failErr != nil {
			logger.Error(ctx, "failed to record generation failure", zap.Error(failErr))
		}
		return
	}

	if err := w.usecase.CompleteGeneration(ctx, job.QuoteID, resultURL); err != nil {
		logger.Error(ctx, "failed to record generation result", zap.Error(err))
		return
	}

	metrics.JobsCompleted.WithLabelValues("completed").Inc()
	logger.Info(ctx, "generation completed", zap.String("job_id", env.JobID))
}

func (w *StylizeWorker) generate(ctx context.Context, job entities.StylizeJob) (string, error) {
	source, contentType, err := w.generator.FetchImage(ctx, job.SourceImageURL)
	if err != nil {
		return "", err
	}

	stylized, err := w.generator.EditImage(ctx, source, contentType, job.Prompt)
	if err != nil {
		return "", err
	}

	// Results are served inline as data URLs; durable object storage is
	// a deployment concern layered on top.
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(stylized), nil
}

var _ ImageGenerator = (*imagegen.Client)(nil)
