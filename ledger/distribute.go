package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/epochmatch/libmatch-go/amount"
)

// Distribute settles the (target, matcher, epoch) triple: it computes
// the matched payout, transfers it to the target, and asks the target
// to stream it over the schedule's payout-notify window. Anyone may
// trigger it once e's veto window has fully closed; it runs exactly
// once per triple. A vetoed pair distributes zero by construction.
//
// When the matcher's match budget cannot cover the full adjusted
// incentive base, the incentive match is pro-rated by the target's
// share of that base. The settlement record and its audit event commit
// in one batch, even when the payout is zero; the transfer and
// notification happen strictly after that commit.
func (l *Ledger) Distribute(ctx context.Context, target, matcher Address, e uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("distribute", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkEpoch(e); err != nil {
		return err
	}
	if now := l.now(); !l.sched.VetoOver(e, now) {
		return fmt.Errorf("%w: epoch %d at %d", ErrVetoPeriodNotEnded, e, now)
	}

	pair, err := l.store.MatchReward(e, matcher, target)
	if err != nil {
		return err
	}
	if pair.State.Distributed() {
		return fmt.Errorf("%w: matcher %s target %s epoch %d", ErrAlreadyDistributed, matcher, target, e)
	}

	var incentiveMatch, voteMatch uint64
	if pair.State.Vetoed() {
		pair.State = MatchVetoedDistributed
	} else {
		pair.State = MatchDistributed

		m, err := l.store.Matcher(e, matcher)
		if err != nil {
			return err
		}
		totals, err := l.store.Totals(e)
		if err != nil {
			return err
		}
		reward, err := l.store.Reward(e, target)
		if err != nil {
			return err
		}

		incentiveBase, err := amount.Add(totals.Info.ExternalIncentives, m.NonBaseExternalIncentives)
		if err != nil {
			return err
		}
		if incentiveBase, err = amount.Sub(incentiveBase, m.ExternalIncentivesDeduction); err != nil {
			return err
		}
		if incentiveBase > 0 {
			targetIncentives, err := amount.Add(reward.Info.ExternalIncentives, pair.NonBaseExternalIncentives)
			if err != nil {
				return err
			}
			if m.MatchBudget >= incentiveBase {
				incentiveMatch = targetIncentives
			} else if incentiveMatch, err = amount.MulDiv(m.MatchBudget, targetIncentives, incentiveBase); err != nil {
				return err
			}
		}

		weightBase, err := amount.Sub(
			amount.Max(totals.Info.WeightedProduct, m.NonBaseWeightedProduct),
			m.VoteProductDeduction,
		)
		if err != nil {
			return err
		}
		if weightBase > 0 {
			targetWeight := amount.Max(pair.NonBaseWeightedProduct, reward.Info.WeightedProduct)
			if voteMatch, err = amount.MulDiv(m.VoteBudget, targetWeight, weightBase); err != nil {
				return err
			}
		}
	}

	totalMatch, err := amount.Add(incentiveMatch, voteMatch)
	if err != nil {
		return err
	}

	err = l.store.Update(func(w StoreWriter) error {
		if err := w.PutMatchReward(e, matcher, target, pair); err != nil {
			return err
		}
		return l.emit(w, Event{
			Type:        EventDistributed,
			Epoch:       e,
			Actor:       matcher,
			Target:      target,
			MatchAmount: incentiveMatch,
			VoteAmount:  voteMatch,
			Amount:      totalMatch,
		})
	})
	if err != nil {
		return err
	}

	if totalMatch > 0 {
		if err := l.custody.Payout(ctx, target, l.base, totalMatch); err != nil {
			return fmt.Errorf("ledger: distribution payout: %w", err)
		}
		notify := uint64(l.sched.PayoutNotify / time.Second)
		applied, err := l.notifier.NotifyMatch(ctx, target, totalMatch, notify)
		if err != nil {
			return fmt.Errorf("ledger: payout notification: %w", err)
		}
		l.log.Debug("payout notified",
			"target", target.String(),
			"amount", totalMatch,
			"requested_seconds", notify,
			"applied_seconds", applied,
		)
	}
	return nil
}
