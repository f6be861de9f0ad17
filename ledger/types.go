package ledger

import "encoding/hex"

// Address identifies a matcher, voter, reward target, or currency.
type Address [20]byte

// String renders the address as lowercase hex for logs and errors.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool { return a == Address{} }

// MultiplierScale is the fixed-point unit for currency multipliers: a
// multiplier of MultiplierScale converts non-base amounts 1:1.
const MultiplierScale = 1e8

// PowerScale is the fixed-point unit for snapshot voting power: a voter
// holding the entire supply has power PowerScale.
const PowerScale = 1e8

// EpochInformation aggregates the vote and incentive activity for one
// scope: either a single target or the whole epoch.
type EpochInformation struct {
	Votes              uint64 // accumulated fixed-point votes
	WeightedProduct    uint64 // incentives x votes, maintained incrementally
	ExternalIncentives uint64 // base-currency incentives
	Tracked            bool   // target appears in the epoch's active list
}

// EpochTotals carries the epoch-wide budget pools and activity sums.
// The WeightedProduct inside Info always equals the sum of the tracked
// targets' weighted products.
type EpochTotals struct {
	MatchBudget uint64
	VoteBudget  uint64
	Info        EpochInformation
}

// RewardRecord is the per-(epoch, target) activity checkpoint.
type RewardRecord struct {
	Info EpochInformation
}

// TokenMultiplier maps a non-base currency to the fixed-point rate a
// matcher converts it at. A zero multiplier means the currency is not
// matched.
type TokenMultiplier struct {
	Currency   Address
	Multiplier uint64
}

// MatcherRecord is the per-(epoch, matcher) escrow and settlement
// state. The deduction fields only ever grow; they are subtracted from
// the epoch aggregates at settlement time to remove vetoed targets
// from this matcher's base.
type MatcherRecord struct {
	MatchBudget                 uint64
	VoteBudget                  uint64
	VoteProductDeduction        uint64
	ExternalIncentivesDeduction uint64
	NonBaseExternalIncentives   uint64
	NonBaseWeightedProduct      uint64
	Multipliers                 []TokenMultiplier
}

// IsZero reports whether the record holds no state at all. A cleared
// (rolled-over) record reads as zero.
func (m *MatcherRecord) IsZero() bool {
	return m.MatchBudget == 0 && m.VoteBudget == 0 &&
		m.VoteProductDeduction == 0 && m.ExternalIncentivesDeduction == 0 &&
		m.NonBaseExternalIncentives == 0 && m.NonBaseWeightedProduct == 0 &&
		len(m.Multipliers) == 0
}

// MatchState tracks the one-shot settlement transitions for a
// (matcher, target) pair within an epoch. Once a pair is vetoed or
// distributed it never returns to an earlier state.
type MatchState uint8

const (
	// MatchPending is the initial state: neither vetoed nor distributed.
	MatchPending MatchState = iota
	// MatchVetoed marks a pair the matcher excluded during the veto window.
	MatchVetoed
	// MatchDistributed marks a pair whose payout has been computed.
	MatchDistributed
	// MatchVetoedDistributed marks a vetoed pair whose (zero) distribution
	// has also been executed.
	MatchVetoedDistributed
)

// Vetoed reports whether the pair has been vetoed.
func (s MatchState) Vetoed() bool {
	return s == MatchVetoed || s == MatchVetoedDistributed
}

// Distributed reports whether the pair has been distributed.
func (s MatchState) Distributed() bool {
	return s == MatchDistributed || s == MatchVetoedDistributed
}

// MatchRewardRecord is the per-(epoch, matcher, target) settlement
// state: the one-shot state tag plus the non-base credit applied to the
// pair via currency conversion.
type MatchRewardRecord struct {
	State                     MatchState
	NonBaseExternalIncentives uint64
	NonBaseWeightedProduct    uint64
}
