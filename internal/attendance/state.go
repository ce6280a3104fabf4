package attendance

import "github.com/benevia/backend/internal/models"

// State is the explicit attendance lifecycle state of a registration.
// Transitions only move forward: NOT_ARRIVED → ARRIVED → CERTIFIED.
type State string

const (
	StateNotArrived State = "NOT_ARRIVED"
	StateArrived    State = "ARRIVED"
	StateCertified  State = "CERTIFIED"
	// StateCancelled admits no scan at all.
	StateCancelled State = "CANCELLED"
)

// StateOf derives the lifecycle state from a registration. Certification
// status wins over timestamp presence so a self-certified registration
// (both timestamps written atomically) also reads as CERTIFIED.
func StateOf(reg *models.Registration) State {
	switch {
	case reg.Status == models.RegistrationStatusCancelled:
		return StateCancelled
	case reg.IsCertified():
		return StateCertified
	case reg.CertificationStartAt != nil:
		return StateArrived
	default:
		return StateNotArrived
	}
}
