package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/config"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/geo"
	"github.com/benevia/backend/pkg/queue"
)

// Self-certification rejection reasons.
const (
	ReasonOutOfWindow = "out_of_window"
	ReasonOutOfRadius = "out_of_radius"
)

// SelfCertResult is the outcome of a successful self-certification.
type SelfCertResult struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	CertifiedAt    time.Time `json:"certified_at"`
	DistanceMeters float64   `json:"distance_meters"`
}

// Evaluator checks the time window and geofence for self-certification and,
// when both pass, certifies the registration in one atomic write. A failed
// check leaves the registration completely untouched — unlike the scan path,
// there is no intermediate state here.
type Evaluator struct {
	regs        RegistrationSource
	transitions TransitionStore
	events      EventSource
	certQueue   CertificateEnqueuer
	cfg         config.SelfCertConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewEvaluator creates a self-certification evaluator.
func NewEvaluator(regs RegistrationSource, transitions TransitionStore, events EventSource,
	certQueue CertificateEnqueuer, cfg config.SelfCertConfig, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		regs:        regs,
		transitions: transitions,
		events:      events,
		certQueue:   certQueue,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate attempts self-certification for the user's registration on an event.
// Both checks run before any write.
func (e *Evaluator) Evaluate(ctx context.Context, userID, eventID, registrationID uuid.UUID, lat, lng float64) (*SelfCertResult, error) {
	reg, err := e.regs.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg == nil || reg.UserID != userID || reg.EventID != eventID {
		return nil, apperr.ErrNotFound
	}

	event, err := e.events.GetByID(ctx, eventID)
	if err != nil || event == nil {
		return nil, apperr.ErrNotFound
	}
	if !event.AllowSelfCertification {
		return nil, apperr.WithReason(apperr.ErrInvalidState, "self_certification_disabled")
	}
	if !event.HasCoordinates() {
		return nil, apperr.WithReason(apperr.ErrInvalidState, "event_has_no_coordinates")
	}

	switch StateOf(reg) {
	case StateCancelled:
		return nil, apperr.WithReason(apperr.ErrInvalidState, "registration_cancelled")
	case StateCertified:
		return nil, apperr.WithReason(apperr.ErrInvalidState, "already_certified")
	case StateArrived:
		// A scan already started; finishing belongs to the operator path.
		return nil, apperr.WithReason(apperr.ErrInvalidState, "scan_in_progress")
	}

	now := e.now()
	windowOpen := event.StartsAt.Add(-time.Duration(e.cfg.WindowBeforeStartMin) * time.Minute)
	windowClose := event.EndsAt.Add(time.Duration(e.cfg.WindowAfterEndMin) * time.Minute)
	if now.Before(windowOpen) || now.After(windowClose) {
		return nil, apperr.WithReason(apperr.ErrInvalidState, ReasonOutOfWindow)
	}

	radius := e.cfg.DefaultRadiusMeters
	if event.SelfCertRadiusMeters != nil {
		radius = *event.SelfCertRadiusMeters
	}
	venue := geo.Point{Lat: *event.Latitude, Lng: *event.Longitude}
	device := geo.Point{Lat: lat, Lng: lng}
	distance := geo.DistanceMeters(venue, device)
	if distance > radius {
		return nil, apperr.WithReason(apperr.ErrInvalidState, ReasonOutOfRadius)
	}

	certifiedAt, ok, err := e.transitions.SelfCertify(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("self certify: %w", err)
	}
	if !ok {
		// Guard miss: a concurrent scan or self-certification got there first.
		return nil, apperr.ErrConflict
	}

	if e.certQueue != nil {
		err := e.certQueue.EnqueueCertificateIssue(ctx, queue.CertificateIssuePayload{RegistrationID: reg.ID})
		if err != nil {
			e.logger.Error("enqueue certificate failed",
				zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}

	return &SelfCertResult{
		RegistrationID: reg.ID,
		CertifiedAt:    *certifiedAt,
		DistanceMeters: distance,
	}, nil
}
