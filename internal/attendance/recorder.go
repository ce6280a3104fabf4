package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/queue"
)

// Scan result types.
const (
	ScanTypeArrival          = "arrival"
	ScanTypeDeparture        = "departure"
	ScanTypeAlreadyCertified = "already_certified"
)

// RegistrationSource resolves registrations for scanning.
type RegistrationSource interface {
	GetByQRToken(ctx context.Context, token string) (*models.Registration, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// TransitionStore performs the guarded state transitions.
type TransitionStore interface {
	RecordArrival(ctx context.Context, registrationID uuid.UUID) (*time.Time, bool, error)
	RecordDeparture(ctx context.Context, registrationID, validatedBy uuid.UUID) (start, end *time.Time, ok bool, err error)
	SelfCertify(ctx context.Context, registrationID uuid.UUID) (*time.Time, bool, error)
}

// EventSource resolves events.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// MembershipChecker answers whether a user belongs to an organization.
type MembershipChecker interface {
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// UserSource resolves users for display names on scan results.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CertificateEnqueuer hands certified registrations to the certificate worker.
type CertificateEnqueuer interface {
	EnqueueCertificateIssue(ctx context.Context, payload queue.CertificateIssuePayload) error
}

// ScanResult is the outcome of a QR scan.
type ScanResult struct {
	ScanType        string     `json:"scan_type"`
	RegistrationID  uuid.UUID  `json:"registration_id"`
	UserName        string     `json:"user_name"`
	EventName       string     `json:"event_name"`
	ArrivalTime     *time.Time `json:"arrival_time,omitempty"`
	DepartureTime   *time.Time `json:"departure_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

// Recorder drives the two-phase QR attendance state machine.
type Recorder struct {
	regs        RegistrationSource
	transitions TransitionStore
	events      EventSource
	members     MembershipChecker
	users       UserSource
	certQueue   CertificateEnqueuer
	logger      *zap.Logger
}

// NewRecorder creates an attendance recorder.
func NewRecorder(regs RegistrationSource, transitions TransitionStore, events EventSource,
	members MembershipChecker, users UserSource, certQueue CertificateEnqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		regs:        regs,
		transitions: transitions,
		events:      events,
		members:     members,
		users:       users,
		certQueue:   certQueue,
		logger:      logger,
	}
}

// Scan processes one QR capture by an operator. The raw payload may be a bare
// token, a JSON wrapper, or a verification URL. Authorization (operator must
// belong to the event's organization) precedes any mutation.
func (r *Recorder) Scan(ctx context.Context, operatorID uuid.UUID, rawPayload string) (*ScanResult, error) {
	token := NormalizeToken(rawPayload)
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", apperr.ErrNotFound)
	}
	reg, err := r.regs.GetByQRToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if reg == nil {
		return nil, apperr.ErrNotFound
	}

	event, err := r.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		return nil, fmt.Errorf("event %s: %w", reg.EventID, apperr.ErrNotFound)
	}
	isMember, err := r.members.IsMember(ctx, event.OrganizationID, operatorID)
	if err != nil {
		return nil, fmt.Errorf("membership check: %w", err)
	}
	if !isMember {
		return nil, apperr.ErrUnauthorized
	}

	switch StateOf(reg) {
	case StateCancelled:
		return nil, apperr.WithReason(apperr.ErrInvalidState, "registration_cancelled")

	case StateNotArrived:
		startAt, ok, err := r.transitions.RecordArrival(ctx, reg.ID)
		if err != nil {
			return nil, fmt.Errorf("record arrival: %w", err)
		}
		if !ok {
			// Lost the race: a concurrent scan moved the registration first.
			return r.afterLostRace(ctx, reg.ID, event)
		}
		res := r.resultFor(ctx, reg, event)
		res.ScanType = ScanTypeArrival
		res.ArrivalTime = startAt
		return res, nil

	case StateArrived:
		start, end, ok, err := r.transitions.RecordDeparture(ctx, reg.ID, operatorID)
		if err != nil {
			return nil, fmt.Errorf("record departure: %w", err)
		}
		if !ok {
			return r.afterLostRace(ctx, reg.ID, event)
		}
		r.enqueueCertificate(ctx, reg.ID, operatorID)
		res := r.resultFor(ctx, reg, event)
		res.ScanType = ScanTypeDeparture
		res.ArrivalTime = start
		res.DepartureTime = end
		res.DurationMinutes = durationMinutes(start, end)
		return res, nil

	default: // StateCertified
		res := r.resultFor(ctx, reg, event)
		res.ScanType = ScanTypeAlreadyCertified
		res.ArrivalTime = reg.CertificationStartAt
		res.DepartureTime = reg.CertificationEndAt
		res.DurationMinutes = durationMinutes(reg.CertificationStartAt, reg.CertificationEndAt)
		return res, nil
	}
}

// afterLostRace re-reads the registration after a guard miss. If the winner
// certified it, report already_certified (idempotent read); otherwise surface
// the conflict for the caller to retry.
func (r *Recorder) afterLostRace(ctx context.Context, regID uuid.UUID, event *models.Event) (*ScanResult, error) {
	reg, err := r.regs.GetByID(ctx, regID)
	if err != nil || reg == nil {
		return nil, apperr.ErrConflict
	}
	if StateOf(reg) != StateCertified {
		return nil, apperr.ErrConflict
	}
	res := r.resultFor(ctx, reg, event)
	res.ScanType = ScanTypeAlreadyCertified
	res.ArrivalTime = reg.CertificationStartAt
	res.DepartureTime = reg.CertificationEndAt
	res.DurationMinutes = durationMinutes(reg.CertificationStartAt, reg.CertificationEndAt)
	return res, nil
}

func (r *Recorder) resultFor(ctx context.Context, reg *models.Registration, event *models.Event) *ScanResult {
	res := &ScanResult{
		RegistrationID: reg.ID,
		EventName:      event.Title,
	}
	if u, err := r.users.GetByID(ctx, reg.UserID); err == nil && u != nil {
		res.UserName = u.FullName
	}
	return res
}

// enqueueCertificate hands off certificate generation. Best-effort: attendance
// state is authoritative and never rolled back on enqueue failure; the
// certificate can always be regenerated.
func (r *Recorder) enqueueCertificate(ctx context.Context, regID, validatedBy uuid.UUID) {
	if r.certQueue == nil {
		return
	}
	err := r.certQueue.EnqueueCertificateIssue(ctx, queue.CertificateIssuePayload{
		RegistrationID: regID,
		ValidatedBy:    &validatedBy,
	})
	if err != nil {
		r.logger.Error("enqueue certificate failed",
			zap.Error(err), zap.String("registration_id", regID.String()))
	}
}

func durationMinutes(start, end *time.Time) *int {
	if start == nil || end == nil {
		return nil
	}
	m := int(end.Sub(*start).Minutes())
	if m < 0 {
		m = 0
	}
	return &m
}
