package ledger

import "errors"

var (
	// ErrZeroAmount indicates a contribution or conversion of zero value.
	ErrZeroAmount = errors.New("ledger: zero amount")

	// ErrEpochEnded indicates the epoch's funding window has closed.
	ErrEpochEnded = errors.New("ledger: epoch has ended")

	// ErrEpochNotEnded indicates an operation that requires the epoch to
	// be over was called while it was still running.
	ErrEpochNotEnded = errors.New("ledger: epoch has not ended")

	// ErrVotePeriodNotActive indicates a vote outside the voting window.
	ErrVotePeriodNotActive = errors.New("ledger: vote period not active")

	// ErrVetoPeriodNotActive indicates a veto outside the veto window.
	ErrVetoPeriodNotActive = errors.New("ledger: veto period not active")

	// ErrVetoPeriodNotEnded indicates distribution or rollover before the
	// veto window closed.
	ErrVetoPeriodNotEnded = errors.New("ledger: veto period has not ended")

	// ErrAlreadyVoted indicates the voter already cast their one-shot
	// vote for the epoch.
	ErrAlreadyVoted = errors.New("ledger: sender has already voted")

	// ErrNoVotingPower indicates a zero snapshot voting power.
	ErrNoVotingPower = errors.New("ledger: sender has no voting power")

	// ErrInvalidTargetOrder indicates vote targets that are not strictly
	// ascending.
	ErrInvalidTargetOrder = errors.New("ledger: invalid target order")

	// ErrInvalidVote indicates a vote allocation that rounds to zero for
	// some target.
	ErrInvalidVote = errors.New("ledger: invalid vote")

	// ErrInvalidWeights indicates a weight list that is empty, mismatched
	// in length, or sums to zero.
	ErrInvalidWeights = errors.New("ledger: invalid vote weights")

	// ErrAlreadyVetoed indicates the matcher already vetoed the target.
	ErrAlreadyVetoed = errors.New("ledger: matcher has already vetoed")

	// ErrAlreadyDistributed indicates the (target, matcher, epoch) triple
	// was already distributed.
	ErrAlreadyDistributed = errors.New("ledger: epoch already distributed")

	// ErrMultipliersAlreadySet indicates the matcher's multiplier list
	// for the epoch is already non-empty.
	ErrMultipliersAlreadySet = errors.New("ledger: token multipliers already set")

	// ErrInvalidIncentiveToken indicates a zero or missing multiplier for
	// the requested currency index.
	ErrInvalidIncentiveToken = errors.New("ledger: invalid incentive token")

	// ErrNoBudget indicates the matcher has no budget of either kind.
	ErrNoBudget = errors.New("ledger: matcher has no budget")

	// ErrNotPermissionedCaller indicates the caller is not the designated
	// permissioned identity.
	ErrNotPermissionedCaller = errors.New("ledger: not permissioned caller")

	// ErrTargetNotCertified indicates the registry rejected the target.
	ErrTargetNotCertified = errors.New("ledger: target not certified")
)
