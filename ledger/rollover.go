package ledger

import (
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// GetRolloverBudget previews the budget matcher could roll out of epoch
// e without mutating anything. It requires e's veto window to be
// closed.
//
// The match rollover is the match budget minus what was actually
// chargeable against it, floored at zero. The vote rollover is all or
// nothing: the entire vote budget comes back only when the matcher's
// effective weighted product is exactly zero (nothing was ever eligible
// to consume it); unconsumed vote budget in a partially consumed epoch
// is forfeited.
func (l *Ledger) GetRolloverBudget(e uint64, matcher Address) (matchRollover, voteRollover uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rolloverBudget(e, matcher)
}

func (l *Ledger) rolloverBudget(e uint64, matcher Address) (matchRollover, voteRollover uint64, err error) {
	if err := l.checkEpoch(e); err != nil {
		return 0, 0, err
	}
	if now := l.now(); !l.sched.VetoOver(e, now) {
		return 0, 0, fmt.Errorf("%w: epoch %d at %d", ErrVetoPeriodNotEnded, e, now)
	}

	m, err := l.store.Matcher(e, matcher)
	if err != nil {
		return 0, 0, err
	}
	totals, err := l.store.Totals(e)
	if err != nil {
		return 0, 0, err
	}

	chargeable, err := amount.Add(m.NonBaseExternalIncentives, totals.Info.ExternalIncentives)
	if err != nil {
		return 0, 0, err
	}
	chargeable = amount.ClipSub(chargeable, m.ExternalIncentivesDeduction)
	matchRollover = amount.ClipSub(m.MatchBudget, chargeable)

	effectiveWeight := amount.ClipSub(
		amount.Max(m.NonBaseWeightedProduct, totals.Info.WeightedProduct),
		m.VoteProductDeduction,
	)
	if effectiveWeight == 0 {
		voteRollover = m.VoteBudget
	}
	return matchRollover, voteRollover, nil
}

// RolloverExcessBudget moves matcher's unused budget from matchedEpoch
// into newEpoch. It deletes matcher's entire record for matchedEpoch,
// so a second rollover for the same epoch observes a cleared record,
// then re-enters the budget credit path against newEpoch without a new
// custody transfer (the funds are already escrowed). newEpoch's funding
// window must still be open and the rolled amounts must not both be
// zero; both are verified before anything commits, and the source
// deletion and destination credit land in one batch.
func (l *Ledger) RolloverExcessBudget(ctx context.Context, matcher Address, matchedEpoch, newEpoch uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("rollover_excess_budget", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	matchRollover, voteRollover, err := l.rolloverBudget(matchedEpoch, matcher)
	if err != nil {
		return err
	}
	if matchRollover == 0 && voteRollover == 0 {
		return fmt.Errorf("%w: nothing to roll over from epoch %d", ErrZeroAmount, matchedEpoch)
	}
	st, err := l.stageBudget(matcher, matchRollover, voteRollover, newEpoch)
	if err != nil {
		return err
	}

	return l.store.Update(func(w StoreWriter) error {
		if err := w.DeleteMatcher(matchedEpoch, matcher); err != nil {
			return err
		}
		if err := l.emit(w, Event{
			Type:        EventBudgetRolledOver,
			Epoch:       matchedEpoch,
			Actor:       matcher,
			MatchAmount: matchRollover,
			VoteAmount:  voteRollover,
		}); err != nil {
			return err
		}
		return l.writeBudget(w, matcher, matchRollover, voteRollover, newEpoch, st)
	})
}
