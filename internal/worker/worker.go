package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/groeigesprek/backend/pkg/queue"
)

// Source yields email jobs and takes back failed ones.
type Source interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
}

// DeliveryLog records delivery attempts.
type DeliveryLog interface {
	Begin(ctx context.Context, jobID string, p queue.EmailPayload) error
	MarkSent(ctx context.Context, jobID string, at time.Time) error
	MarkFailed(ctx context.Context, jobID, message string, final bool) error
}

// EmailProcessor delivers queued emails and keeps the delivery log current.
type EmailProcessor struct {
	source  Source
	log     DeliveryLog
	mailer  Mailer
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(source Source, log DeliveryLog, mailer Mailer, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		source:  source,
		log:     log,
		mailer:  mailer,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process delivers one job. On a send failure the job is handed back for
// retry or dead-lettering and the send error is returned.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.Email()
	if err != nil {
		// Undecodable jobs will never succeed.
		p.logger.Error("dropping email job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	if err := p.log.Begin(ctx, job.ID, payload); err != nil {
		p.logger.Warn("email log insert failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	sendErr := p.mailer.Send(ctx, Message{
		To:      payload.RecipientEmail,
		ToName:  payload.RecipientName,
		Subject: payload.Subject,
		HTML:    payload.BodyHTML,
	})
	if sendErr == nil {
		if err := p.log.MarkSent(ctx, job.ID, p.now()); err != nil {
			p.logger.Warn("email log update failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		p.logger.Info("email sent",
			zap.String("job_id", job.ID),
			zap.String("email_type", payload.EmailType),
			zap.Int("attempt", job.Attempt+1),
		)
		return nil
	}

	dead, err := p.source.Retry(ctx, job)
	if err != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	if err := p.log.MarkFailed(ctx, job.ID, sendErr.Error(), dead); err != nil {
		p.logger.Warn("email log update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return fmt.Errorf("send %s to job %s: %w", payload.EmailType, job.ID, sendErr)
}

// Run starts the worker loop: dequeue, process, back off on error. It
// returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
