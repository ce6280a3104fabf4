package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benevia/backend/config"
	"github.com/benevia/backend/internal/certificates"
	"github.com/benevia/backend/internal/emaillogs"
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/internal/notifications"
	"github.com/benevia/backend/pkg/queue"
)

// Processor consumes the job queues: certificate generation after a departure
// scan or self-certification, notification fan-out, and the email leg.
type Processor struct {
	generator  *certificates.Generator
	dispatcher *notifications.Dispatcher
	emailLogs  *emaillogs.Repository
	emailCfg   config.EmailConfig
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(generator *certificates.Generator, dispatcher *notifications.Dispatcher,
	emailLogs *emaillogs.Repository, emailCfg config.EmailConfig, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		generator:  generator,
		dispatcher: dispatcher,
		emailLogs:  emailLogs,
		emailCfg:   emailCfg,
		queue:      q,
		logger:     logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeCertificateIssue:
		return p.processCertificate(ctx, job)
	case queue.JobTypeNotification:
		return p.processNotification(ctx, job)
	case queue.JobTypeEmail:
		return p.processEmail(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processCertificate(ctx context.Context, job *queue.Job) error {
	var payload queue.CertificateIssuePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := p.generator.Generate(ctx, payload.RegistrationID)
	if err != nil {
		return fmt.Errorf("generate certificate: %w", err)
	}
	p.logger.Info("certificate issued",
		zap.String("registration_id", payload.RegistrationID.String()),
		zap.String("certificate_id", res.CertificateID.String()))
	return nil
}

func (p *Processor) processNotification(ctx context.Context, job *queue.Job) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := p.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		return fmt.Errorf("dispatch notification: %w", err)
	}
	p.logger.Info("notification job processed",
		zap.String("type", payload.Type), zap.Int("sent", res.NotificationsSent))
	return nil
}

// processEmail is the stub delivery channel: without an SMTP host it records
// the attempt as skipped so the notification trail stays complete.
func (p *Processor) processEmail(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// TODO: wire SMTP delivery once the provider account exists; until then
	// every attempt is recorded as skipped.
	status := models.EmailLogStatusSkipped
	log := &models.EmailLog{
		NotificationID: &payload.NotificationID,
		EventID:        payload.EventID,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         status,
	}
	if err := p.emailLogs.Record(ctx, log); err != nil {
		return fmt.Errorf("record email log: %w", err)
	}
	p.logger.Info("email job processed",
		zap.String("recipient", payload.RecipientEmail), zap.String("status", status))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
