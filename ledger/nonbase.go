package ledger

import (
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// SetTokenMultipliers stores matcher's (currency, multiplier) list for
// epoch e verbatim. It may be called once per matcher per epoch, only
// while e's funding window is still open. An empty stored list means
// the matcher converts no non-base currency.
func (l *Ledger) SetTokenMultipliers(ctx context.Context, matcher Address, list []TokenMultiplier, e uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("set_token_multipliers", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkEpoch(e); err != nil {
		return err
	}
	if now := l.now(); l.sched.IsOver(e, now) {
		return fmt.Errorf("%w: epoch %d at %d", ErrEpochEnded, e, now)
	}

	m, err := l.store.Matcher(e, matcher)
	if err != nil {
		return err
	}
	if len(m.Multipliers) > 0 {
		return fmt.Errorf("%w: matcher %s epoch %d", ErrMultipliersAlreadySet, matcher, e)
	}

	m.Multipliers = make([]TokenMultiplier, len(list))
	copy(m.Multipliers, list)

	return l.store.Update(func(w StoreWriter) error {
		if err := w.PutMatcher(e, matcher, m); err != nil {
			return err
		}
		return l.emit(w, Event{
			Type:   EventMultipliersSet,
			Epoch:  e,
			Actor:  matcher,
			Amount: uint64(len(list)),
		})
	})
}

// ApplyNonBaseTokenMatch converts the non-base pool accumulated for
// target in the currency at multiplier index `index` of matcher's list
// into base-currency credit for the (matcher, target) pair, and folds
// the pair's recomputed weighted product into the matcher's non-base
// aggregate. Legal only after epoch e has ended and before the pair is
// vetoed or distributed.
//
// There is no per-index "already applied" flag: callers are expected to
// apply each relevant index exactly once per pair. A repeat application
// before distribution re-credits the same stored pool.
func (l *Ledger) ApplyNonBaseTokenMatch(ctx context.Context, target, matcher Address, index int, e uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("apply_non_base_token_match", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkEpoch(e); err != nil {
		return err
	}
	if now := l.now(); !l.sched.IsOver(e, now) {
		return fmt.Errorf("%w: epoch %d at %d", ErrEpochNotEnded, e, now)
	}

	pair, err := l.store.MatchReward(e, matcher, target)
	if err != nil {
		return err
	}
	if pair.State.Vetoed() {
		return fmt.Errorf("%w: matcher %s target %s epoch %d", ErrAlreadyVetoed, matcher, target, e)
	}
	if pair.State.Distributed() {
		return fmt.Errorf("%w: matcher %s target %s epoch %d", ErrAlreadyDistributed, matcher, target, e)
	}

	m, err := l.store.Matcher(e, matcher)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(m.Multipliers) {
		return fmt.Errorf("%w: index %d of %d", ErrInvalidIncentiveToken, index, len(m.Multipliers))
	}
	mult := m.Multipliers[index]
	if mult.Multiplier == 0 {
		return fmt.Errorf("%w: %s not matched", ErrInvalidIncentiveToken, mult.Currency)
	}

	pool, err := l.store.NonBaseIncentive(e, mult.Currency, target)
	if err != nil {
		return err
	}
	if pool == 0 {
		return fmt.Errorf("%w: no %s incentives for target %s", ErrZeroAmount, mult.Currency, target)
	}
	if m.MatchBudget == 0 && m.VoteBudget == 0 {
		return fmt.Errorf("%w: matcher %s epoch %d", ErrNoBudget, matcher, e)
	}

	adjusted, err := amount.MulDiv(pool, mult.Multiplier, MultiplierScale)
	if err != nil {
		return err
	}

	reward, err := l.store.Reward(e, target)
	if err != nil {
		return err
	}
	totals, err := l.store.Totals(e)
	if err != nil {
		return err
	}

	if pair.NonBaseExternalIncentives, err = amount.Add(pair.NonBaseExternalIncentives, adjusted); err != nil {
		return err
	}
	if m.NonBaseExternalIncentives, err = amount.Add(m.NonBaseExternalIncentives, adjusted); err != nil {
		return err
	}

	// Recompute the pair's weighted product with the converted credit
	// included, then swap it into the matcher's non-base aggregate. The
	// aggregate starts from whichever view is larger, the epoch-wide
	// product or the matcher's prior non-base product, and the pair's
	// prior contribution to that view is subtracted in full: the base
	// weighted product on a first conversion, the previously converted
	// product on a repeat. The adjusted value supersedes the base-only
	// one rather than stacking on top of it.
	pairIncentives, err := amount.Add(reward.Info.ExternalIncentives, pair.NonBaseExternalIncentives)
	if err != nil {
		return err
	}
	newPairWeight, err := amount.Mul(pairIncentives, reward.Info.Votes)
	if err != nil {
		return err
	}
	aggregate := amount.Max(totals.Info.WeightedProduct, m.NonBaseWeightedProduct)
	oldPairWeight := amount.Max(reward.Info.WeightedProduct, pair.NonBaseWeightedProduct)
	if aggregate, err = amount.Sub(aggregate, oldPairWeight); err != nil {
		return err
	}
	if aggregate, err = amount.Add(aggregate, newPairWeight); err != nil {
		return err
	}
	m.NonBaseWeightedProduct = aggregate
	pair.NonBaseWeightedProduct = newPairWeight

	return l.store.Update(func(w StoreWriter) error {
		if err := w.PutMatchReward(e, matcher, target, pair); err != nil {
			return err
		}
		if err := w.PutMatcher(e, matcher, m); err != nil {
			return err
		}
		return l.emit(w, Event{
			Type:     EventNonBaseApplied,
			Epoch:    e,
			Actor:    matcher,
			Target:   target,
			Currency: mult.Currency,
			Amount:   adjusted,
		})
	})
}
