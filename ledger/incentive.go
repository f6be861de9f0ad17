package ledger

import (
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// AddIncentives credits amt of base-currency incentives to target for
// the current epoch. The target must be certified by the registry and
// offer a voting-escrow staking option for the base currency. First-time
// targets are appended to the epoch's active-target list and marked
// tracked.
func (l *Ledger) AddIncentives(ctx context.Context, funder, target Address, amt uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("add_incentives", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addIncentives(ctx, funder, target, amt)
}

// AddNonBaseTokenIncentives credits amt of currency-denominated
// incentives to target for the current epoch. The raw amount is held
// unconverted; it only enters the settlement math once a matcher
// applies one of its currency multipliers after the epoch ends.
func (l *Ledger) AddNonBaseTokenIncentives(ctx context.Context, funder, target Address, amt uint64, currency Address) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("add_non_base_incentives", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addNonBaseIncentives(ctx, funder, target, amt, currency)
}

// PermissionedAddIncentives is the privileged incentive entry point,
// restricted to the configured permissioned caller. It dispatches to
// the base or non-base path depending on currency.
func (l *Ledger) PermissionedAddIncentives(ctx context.Context, caller, target Address, amt uint64, currency Address) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("permissioned_add_incentives", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.permissioned {
		return fmt.Errorf("%w: %s", ErrNotPermissionedCaller, caller)
	}
	if currency == l.base {
		return l.addIncentives(ctx, caller, target, amt)
	}
	return l.addNonBaseIncentives(ctx, caller, target, amt, currency)
}

func (l *Ledger) addIncentives(ctx context.Context, funder, target Address, amt uint64) error {
	if amt == 0 {
		return fmt.Errorf("%w: incentive for target %s", ErrZeroAmount, target)
	}
	if err := l.certifyTarget(ctx, target); err != nil {
		return err
	}
	e := l.sched.Current(l.now())

	reward, err := l.store.Reward(e, target)
	if err != nil {
		return err
	}
	totals, err := l.store.Totals(e)
	if err != nil {
		return err
	}
	track := !reward.Info.Tracked
	reward.Info.Tracked = true

	if reward.Info.ExternalIncentives, err = amount.Add(reward.Info.ExternalIncentives, amt); err != nil {
		return err
	}
	if totals.Info.ExternalIncentives, err = amount.Add(totals.Info.ExternalIncentives, amt); err != nil {
		return err
	}
	if err := retotal(&totals, &reward); err != nil {
		return err
	}

	if err := l.custody.Deposit(ctx, funder, l.base, amt); err != nil {
		return fmt.Errorf("ledger: incentive deposit: %w", err)
	}

	return l.store.Update(func(w StoreWriter) error {
		if err := w.PutReward(e, target, reward); err != nil {
			return err
		}
		if err := w.PutTotals(e, totals); err != nil {
			return err
		}
		if track {
			if err := w.AppendTarget(e, target); err != nil {
				return err
			}
		}
		return l.emit(w, Event{
			Type:     EventIncentiveAdded,
			Epoch:    e,
			Actor:    funder,
			Target:   target,
			Currency: l.base,
			Amount:   amt,
		})
	})
}

func (l *Ledger) addNonBaseIncentives(ctx context.Context, funder, target Address, amt uint64, currency Address) error {
	if amt == 0 {
		return fmt.Errorf("%w: non-base incentive for target %s", ErrZeroAmount, target)
	}
	if currency == l.base {
		return fmt.Errorf("%w: %s is the base currency", ErrInvalidIncentiveToken, currency)
	}
	if err := l.certifyTarget(ctx, target); err != nil {
		return err
	}
	e := l.sched.Current(l.now())

	pool, err := l.store.NonBaseIncentive(e, currency, target)
	if err != nil {
		return err
	}
	if pool, err = amount.Add(pool, amt); err != nil {
		return err
	}

	if err := l.custody.Deposit(ctx, funder, currency, amt); err != nil {
		return fmt.Errorf("ledger: non-base incentive deposit: %w", err)
	}

	return l.store.Update(func(w StoreWriter) error {
		if err := w.PutNonBaseIncentive(e, currency, target, pool); err != nil {
			return err
		}
		return l.emit(w, Event{
			Type:     EventNonBaseAdded,
			Epoch:    e,
			Actor:    funder,
			Target:   target,
			Currency: currency,
			Amount:   amt,
		})
	})
}

// certifyTarget runs the registry eligibility checks.
func (l *Ledger) certifyTarget(ctx context.Context, target Address) error {
	ok, err := l.registry.IsCertified(ctx, target)
	if err != nil {
		return fmt.Errorf("ledger: registry certification: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotCertified, target)
	}
	ok, err = l.registry.HasStakingOption(ctx, target, l.base)
	if err != nil {
		return fmt.Errorf("ledger: registry staking option: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s has no staking option", ErrTargetNotCertified, target)
	}
	return nil
}

// retotal recomputes target's weighted product and folds the change
// into the epoch aggregate. The subtract-then-add keeps the aggregate
// equal to the sum of all tracked targets' weighted products in O(1)
// per update instead of an O(targets) scan at settlement.
//
// Nothing happens while the target has no votes or the epoch has no
// incentive/vote activity at all: no weight exists yet to track.
func retotal(totals *EpochTotals, reward *RewardRecord) error {
	if reward.Info.Votes == 0 {
		return nil
	}
	if totals.Info.ExternalIncentives == 0 || totals.Info.Votes == 0 {
		return nil
	}
	newWeight, err := amount.Mul(reward.Info.ExternalIncentives, reward.Info.Votes)
	if err != nil {
		return err
	}
	agg, err := amount.Sub(totals.Info.WeightedProduct, reward.Info.WeightedProduct)
	if err != nil {
		return err
	}
	if agg, err = amount.Add(agg, newWeight); err != nil {
		return err
	}
	totals.Info.WeightedProduct = agg
	reward.Info.WeightedProduct = newWeight
	return nil
}
