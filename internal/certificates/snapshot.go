package certificates

import (
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
)

// BuildSnapshot assembles the certificate data from the current source rows.
// Pure function: the same inputs always yield the same snapshot, and
// regenerating after a source row changed yields the corrected snapshot.
// Validator identity is blank on the self-certification path.
func BuildSnapshot(user *models.User, event *models.Event, org *models.Organization,
	reg *models.Registration, validatorName, validatorRole string) (*models.CertificateSnapshot, error) {
	if user == nil || event == nil || org == nil || reg == nil {
		return nil, apperr.ErrNotFound
	}
	if !reg.IsCertified() || reg.CertificationEndAt == nil {
		return nil, apperr.WithReason(apperr.ErrInvalidState, "not_certified")
	}

	snap := &models.CertificateSnapshot{
		UserFullName:     user.FullName,
		UserDateOfBirth:  user.DateOfBirth,
		EventName:        event.Title,
		EventStartsAt:    event.StartsAt,
		EventEndsAt:      event.EndsAt,
		EventLocation:    event.LocationName,
		OrganizationName: org.Name,
		OrganizationLogo: org.LogoURL,
		IsSelfCertified:  reg.IsSelfCertified(),
		CertifiedAt:      *reg.CertificationEndAt,
	}
	if !snap.IsSelfCertified {
		snap.ValidatorName = validatorName
		snap.ValidatorRole = validatorRole
	}
	return snap, nil
}
