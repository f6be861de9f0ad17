// Package epoch provides the time-window arithmetic for the matching
// ledger: which epoch a timestamp belongs to and which phase of that
// epoch (funding, voting, veto, settled) is active at a given moment.
//
// All functions are pure. Timestamps are unix seconds, and an epoch is
// identified by its start timestamp, which is always an exact multiple
// of the schedule period. A timestamp that is not period-aligned is not
// a valid epoch reference.
package epoch

import (
	"fmt"
	"time"
)

// Default phase durations used by the reference deployment.
const (
	DefaultPeriod       = 14 * 24 * time.Hour
	DefaultPreVote      = 7 * 24 * time.Hour
	DefaultVeto         = 2 * 24 * time.Hour
	DefaultPayoutNotify = 14 * 24 * time.Hour
)

// Schedule fixes the durations that carve an epoch into phases.
//
// An epoch starting at e runs [e, e+Period). Voting is open during
// [e+PreVote, e+Period), vetoing during [e+Period, e+Period+Veto).
// PayoutNotify is the streaming window requested when a distribution
// pays out.
type Schedule struct {
	Period       time.Duration
	PreVote      time.Duration
	Veto         time.Duration
	PayoutNotify time.Duration
}

// DefaultSchedule returns the 14-day epoch schedule with a 7-day
// pre-vote phase, 2-day veto window, and 14-day payout notify window.
func DefaultSchedule() Schedule {
	return Schedule{
		Period:       DefaultPeriod,
		PreVote:      DefaultPreVote,
		Veto:         DefaultVeto,
		PayoutNotify: DefaultPayoutNotify,
	}
}

// Validate checks that the schedule durations are coherent.
func (s Schedule) Validate() error {
	if s.Period <= 0 {
		return fmt.Errorf("%w: period %v", ErrInvalidSchedule, s.Period)
	}
	if s.PreVote <= 0 || s.PreVote >= s.Period {
		return fmt.Errorf("%w: pre-vote %v must be within (0, period)", ErrInvalidSchedule, s.PreVote)
	}
	if s.Veto <= 0 {
		return fmt.Errorf("%w: veto %v", ErrInvalidSchedule, s.Veto)
	}
	if s.PayoutNotify <= 0 {
		return fmt.Errorf("%w: payout notify %v", ErrInvalidSchedule, s.PayoutNotify)
	}
	return nil
}

// period returns the schedule period in whole seconds.
func (s Schedule) period() uint64 { return uint64(s.Period / time.Second) }

// IsEpoch reports whether t is a valid epoch start, i.e. an exact
// multiple of the schedule period.
func (s Schedule) IsEpoch(t uint64) bool {
	return t%s.period() == 0
}

// CheckEpoch returns ErrInvalidEpoch if t is not a valid epoch start.
func (s Schedule) CheckEpoch(t uint64) error {
	if !s.IsEpoch(t) {
		return fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidEpoch, t, s.period())
	}
	return nil
}

// Current returns the epoch containing now: now floored to the nearest
// period boundary.
func (s Schedule) Current(now uint64) uint64 {
	return now - now%s.period()
}

// Last returns the epoch immediately before the one containing now.
// During the genesis epoch there is no previous one; Last clamps to 0
// rather than wrapping below it.
func (s Schedule) Last(now uint64) uint64 {
	cur := s.Current(now)
	if cur == 0 {
		return 0
	}
	return cur - s.period()
}

// VotingStart returns the timestamp at which voting opens for e.
func (s Schedule) VotingStart(e uint64) uint64 {
	return e + uint64(s.PreVote/time.Second)
}

// End returns the timestamp at which e ends and the next epoch begins.
func (s Schedule) End(e uint64) uint64 {
	return e + s.period()
}

// VetoEnd returns the timestamp at which the veto window for e closes.
func (s Schedule) VetoEnd(e uint64) uint64 {
	return s.End(e) + uint64(s.Veto/time.Second)
}

// IsOver reports whether e has ended as of now.
func (s Schedule) IsOver(e, now uint64) bool {
	return now >= s.End(e)
}

// VotingActive reports whether now falls inside e's voting window,
// [VotingStart(e), End(e)).
func (s Schedule) VotingActive(e, now uint64) bool {
	return now >= s.VotingStart(e) && now < s.End(e)
}

// VetoActive reports whether now falls inside e's veto window,
// [End(e), VetoEnd(e)).
func (s Schedule) VetoActive(e, now uint64) bool {
	return now >= s.End(e) && now < s.VetoEnd(e)
}

// VetoOver reports whether e's veto window has fully closed as of now.
// Distribution and rollover become legal at this point.
func (s Schedule) VetoOver(e, now uint64) bool {
	return now >= s.VetoEnd(e)
}
