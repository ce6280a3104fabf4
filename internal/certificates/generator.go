package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/queue"
	"github.com/benevia/backend/pkg/storage"
)

// RegistrationStore reads registrations and persists their certificate fields.
type RegistrationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	SetCertificate(ctx context.Context, registrationID, certificateID uuid.UUID, url string, data json.RawMessage) error
}

// UserSource resolves the certified user.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EventSource resolves the event the certificate is for.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// OrganizationSource resolves the hosting organization and validator identity.
type OrganizationSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	MemberName(ctx context.Context, orgID, userID uuid.UUID) (name, role string, err error)
}

// ArtifactStore uploads the rendered artifact to object storage.
type ArtifactStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64, publicRead bool) (string, error)
	CertificatesBucket() string
}

// NotificationEnqueuer hands the issued-certificate event to the notification worker.
type NotificationEnqueuer interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
}

// IssueResult describes an issued certificate.
type IssueResult struct {
	CertificateID  uuid.UUID                  `json:"certificate_id"`
	CertificateURL string                     `json:"certificate_url"`
	Snapshot       *models.CertificateSnapshot `json:"snapshot"`
}

// Generator renders and stores certificate artifacts for certified
// registrations. Generation is repeatable: the certificate id is minted once
// and the artifact key is derived from user and registration ids, so
// re-issuing overwrites the same object under the same public identity.
type Generator struct {
	regs       RegistrationStore
	users      UserSource
	events     EventSource
	orgs       OrganizationSource
	artifacts  ArtifactStore
	notifQueue NotificationEnqueuer
	logger     *zap.Logger
}

// NewGenerator creates a certificate generator.
func NewGenerator(regs RegistrationStore, users UserSource, events EventSource, orgs OrganizationSource,
	artifacts ArtifactStore, notifQueue NotificationEnqueuer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		regs:       regs,
		users:      users,
		events:     events,
		orgs:       orgs,
		artifacts:  artifacts,
		notifQueue: notifQueue,
		logger:     logger,
	}
}

// Generate issues (or re-issues) the certificate for a registration. The
// snapshot is recomputed from current rows on every call. Notification
// delivery is best-effort; a failed enqueue never fails the issuance.
func (g *Generator) Generate(ctx context.Context, registrationID uuid.UUID) (*IssueResult, error) {
	reg, err := g.regs.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg == nil {
		return nil, apperr.ErrNotFound
	}
	if !reg.IsCertified() {
		return nil, apperr.WithReason(apperr.ErrInvalidState, "not_certified")
	}

	user, err := g.users.GetByID(ctx, reg.UserID)
	if err != nil || user == nil {
		return nil, fmt.Errorf("load user %s: %w", reg.UserID, apperr.ErrNotFound)
	}
	event, err := g.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		return nil, fmt.Errorf("load event %s: %w", reg.EventID, apperr.ErrNotFound)
	}
	org, err := g.orgs.GetByID(ctx, event.OrganizationID)
	if err != nil || org == nil {
		return nil, fmt.Errorf("load organization %s: %w", event.OrganizationID, apperr.ErrNotFound)
	}

	var validatorName, validatorRole string
	if !reg.IsSelfCertified() && reg.ValidatedBy != nil {
		validatorName, validatorRole, err = g.orgs.MemberName(ctx, event.OrganizationID, *reg.ValidatedBy)
		if err != nil {
			return nil, fmt.Errorf("resolve validator: %w", err)
		}
	}

	snapshot, err := BuildSnapshot(user, event, org, reg, validatorName, validatorRole)
	if err != nil {
		return nil, err
	}

	certID := uuid.New()
	if reg.CertificateID != nil {
		certID = *reg.CertificateID
	}

	html, err := Render(snapshot, certID)
	if err != nil {
		return nil, err
	}

	key := storage.CertificateKey(reg.UserID.String(), reg.ID.String())
	url, err := g.artifacts.Upload(ctx, g.artifacts.CertificatesBucket(), key, "text/html; charset=utf-8",
		bytes.NewReader(html), int64(len(html)), true)
	if err != nil {
		return nil, fmt.Errorf("upload certificate: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := g.regs.SetCertificate(ctx, reg.ID, certID, url, data); err != nil {
		return nil, err
	}

	g.notifyIssued(ctx, reg.UserID, event, url)

	return &IssueResult{CertificateID: certID, CertificateURL: url, Snapshot: snapshot}, nil
}

func (g *Generator) notifyIssued(ctx context.Context, userID uuid.UUID, event *models.Event, url string) {
	if g.notifQueue == nil {
		return
	}
	err := g.notifQueue.EnqueueNotification(ctx, queue.NotificationPayload{
		Type:      models.NotificationTypeCertificateReady,
		UserID:    &userID,
		EventID:   &event.ID,
		EventName: event.Title,
		ActionURL: url,
	})
	if err != nil {
		g.logger.Error("enqueue certificate notification failed",
			zap.Error(err), zap.String("user_id", userID.String()), zap.String("event_id", event.ID.String()))
	}
}
