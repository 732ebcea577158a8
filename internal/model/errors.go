package model

import "github.com/rotisserie/eris"

// Error taxonomy for the decision engine. Selection-path errors surface to
// the caller; attribution and orchestrator paths recover locally.
var (
	// ErrNoEligibleArms means the registry has no active arm of the requested
	// type. The caller must seed arms first; the engine never retries this.
	ErrNoEligibleArms = eris.New("no eligible arms")

	// ErrInvalidPhase means an outcome snapshot named a phase outside the
	// defined enum. The snapshot is dropped.
	ErrInvalidPhase = eris.New("invalid outcome phase")

	// ErrStaleSnapshot means an outcome snapshot predates the artifact's
	// publish time. The snapshot is dropped.
	ErrStaleSnapshot = eris.New("stale outcome snapshot")

	// ErrBudgetUnavailable means budget state could not be read. Callers
	// degrade to the cheapest tier instead of failing.
	ErrBudgetUnavailable = eris.New("budget state unavailable")

	// ErrNotFound is returned by store lookups that matched no row.
	ErrNotFound = eris.New("not found")
)
