package epoch

import "errors"

var (
	// ErrInvalidEpoch indicates a timestamp that is not aligned to the
	// epoch period and therefore cannot reference an epoch.
	ErrInvalidEpoch = errors.New("epoch: invalid epoch timestamp")

	// ErrInvalidSchedule indicates incoherent schedule durations.
	ErrInvalidSchedule = errors.New("epoch: invalid schedule")
)
