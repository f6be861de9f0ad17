package ledger

import (
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// Veto excludes target from matcher's settlement base for the epoch
// that just ended. Legal only inside that epoch's veto window, once per
// (matcher, target) pair, and only for matchers holding budget. The
// target's weighted product and incentives are added to the matcher's
// running deduction totals, which only ever grow.
//
// The vote-product deduction takes the larger of the target's base
// weighted product and the pair's non-base weighted product: once a
// conversion has been applied, the non-base-adjusted value supersedes
// the base-only one.
func (l *Ledger) Veto(ctx context.Context, matcher, target Address) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("veto", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.sched.Last(now)
	if !l.sched.VetoActive(e, now) {
		return fmt.Errorf("%w: epoch %d at %d", ErrVetoPeriodNotActive, e, now)
	}

	pair, err := l.store.MatchReward(e, matcher, target)
	if err != nil {
		return err
	}
	if pair.State.Vetoed() {
		return fmt.Errorf("%w: matcher %s target %s epoch %d", ErrAlreadyVetoed, matcher, target, e)
	}

	m, err := l.store.Matcher(e, matcher)
	if err != nil {
		return err
	}
	if m.MatchBudget == 0 && m.VoteBudget == 0 {
		return fmt.Errorf("%w: matcher %s epoch %d", ErrNoBudget, matcher, e)
	}

	reward, err := l.store.Reward(e, target)
	if err != nil {
		return err
	}

	productDeduction := amount.Max(reward.Info.WeightedProduct, pair.NonBaseWeightedProduct)
	incentiveDeduction, err := amount.Add(reward.Info.ExternalIncentives, pair.NonBaseExternalIncentives)
	if err != nil {
		return err
	}
	if m.VoteProductDeduction, err = amount.Add(m.VoteProductDeduction, productDeduction); err != nil {
		return err
	}
	if m.ExternalIncentivesDeduction, err = amount.Add(m.ExternalIncentivesDeduction, incentiveDeduction); err != nil {
		return err
	}
	pair.State = MatchVetoed

	return l.store.Update(func(w StoreWriter) error {
		if err := w.PutMatcher(e, matcher, m); err != nil {
			return err
		}
		if err := w.PutMatchReward(e, matcher, target, pair); err != nil {
			return err
		}
		return l.emit(w, Event{
			Type:   EventVetoCast,
			Epoch:  e,
			Actor:  matcher,
			Target: target,
		})
	})
}
