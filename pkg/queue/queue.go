package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueCertificates is the Redis list key for certificate generation jobs.
	QueueCertificates = "worker:certificates"
	// QueueNotifications is the Redis list key for notification fan-out jobs.
	QueueNotifications = "worker:notifications"
	// QueueEmails is the Redis list key for email delivery jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeCertificateIssue JobType = "certificate_issue"
	JobTypeNotification     JobType = "notification"
	JobTypeEmail            JobType = "email"
)

// CertificateIssuePayload asks the worker to generate (or regenerate) the
// certificate artifact for a certified registration.
type CertificateIssuePayload struct {
	RegistrationID uuid.UUID  `json:"registration_id"`
	ValidatedBy    *uuid.UUID `json:"validated_by,omitempty"`
}

// NotificationPayload carries the CertificateGenerated event (and any other
// fan-out request) to the notification worker. Exactly one addressing field
// is set: UserID, OrganizationID, or EventID with NotifyParticipants.
type NotificationPayload struct {
	Type               string     `json:"type"`
	UserID             *uuid.UUID `json:"user_id,omitempty"`
	OrganizationID     *uuid.UUID `json:"organization_id,omitempty"`
	EventID            *uuid.UUID `json:"event_id,omitempty"`
	NotifyParticipants bool       `json:"notify_participants,omitempty"`
	EventName          string     `json:"event_name,omitempty"`
	ActionURL          string     `json:"action_url,omitempty"`
	CustomMessageFR    string     `json:"custom_message_fr,omitempty"`
	CustomMessageEN    string     `json:"custom_message_en,omitempty"`
}

// EmailPayload is the payload for email delivery jobs.
type EmailPayload struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	BodyHTML       string     `json:"body_html"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func queueKeyFor(t JobType) string {
	switch t {
	case JobTypeCertificateIssue:
		return QueueCertificates
	case JobTypeNotification:
		return QueueNotifications
	case JobTypeEmail:
		return QueueEmails
	}
	return QueueDLQ
}

func (q *Queue) enqueue(ctx context.Context, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queueKeyFor(jobType), raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return nil
}

// EnqueueCertificateIssue enqueues a certificate generation job.
func (q *Queue) EnqueueCertificateIssue(ctx context.Context, payload CertificateIssuePayload) error {
	return q.enqueue(ctx, JobTypeCertificateIssue, payload)
}

// EnqueueNotification enqueues a notification fan-out job.
func (q *Queue) EnqueueNotification(ctx context.Context, payload NotificationPayload) error {
	return q.enqueue(ctx, JobTypeNotification, payload)
}

// EnqueueEmail enqueues an email delivery job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	return q.enqueue(ctx, JobTypeEmail, payload)
}

// Dequeue blocks until a job is available on any worker queue or ctx is done.
// Returns the job and the queue key it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueCertificates, QueueNotifications, QueueEmails).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, queueKeyFor(job.Type), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
