package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// Vote records voter's one allowed vote allocation for the current
// epoch, splitting their snapshot voting power across targets in
// proportion to weights. Targets must be strictly ascending with no
// duplicates. The call is atomic: any failure, including a per-target
// allocation rounding to zero, persists nothing, so the voter's
// one-shot flag is only burned by a fully applied vote.
func (l *Ledger) Vote(ctx context.Context, voter Address, targets []Address, weights []uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("vote", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.sched.Current(now)
	if !l.sched.VotingActive(e, now) {
		return fmt.Errorf("%w: epoch %d at %d", ErrVotePeriodNotActive, e, now)
	}

	voted, err := l.store.HasVoted(e, voter)
	if err != nil {
		return err
	}
	if voted {
		return fmt.Errorf("%w: %s in epoch %d", ErrAlreadyVoted, voter, e)
	}

	if len(targets) == 0 || len(targets) != len(weights) {
		return fmt.Errorf("%w: %d targets, %d weights", ErrInvalidWeights, len(targets), len(weights))
	}
	for i := 1; i < len(targets); i++ {
		if bytes.Compare(targets[i-1][:], targets[i][:]) >= 0 {
			return fmt.Errorf("%w: target %s at index %d", ErrInvalidTargetOrder, targets[i], i)
		}
	}
	var weightSum uint64
	for _, w := range weights {
		if weightSum, err = amount.Add(weightSum, w); err != nil {
			return err
		}
	}
	if weightSum == 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}

	// Snapshot voting power at the epoch's voting start.
	at := l.sched.VotingStart(e)
	votes, err := l.power.PastVotes(ctx, voter, at)
	if err != nil {
		return fmt.Errorf("ledger: past votes: %w", err)
	}
	supply, err := l.power.PastTotalSupply(ctx, at)
	if err != nil {
		return fmt.Errorf("ledger: past total supply: %w", err)
	}
	if supply == 0 {
		return fmt.Errorf("%w: %s (zero supply at %d)", ErrNoVotingPower, voter, at)
	}
	power, err := amount.MulDiv(votes, PowerScale, supply)
	if err != nil {
		return err
	}
	if power == 0 {
		return fmt.Errorf("%w: %s at %d", ErrNoVotingPower, voter, at)
	}

	// Stage every mutation before committing anything.
	totals, err := l.store.Totals(e)
	if err != nil {
		return err
	}
	rewards := make([]RewardRecord, len(targets))
	allocs := make([]uint64, len(targets))
	for i, target := range targets {
		if rewards[i], err = l.store.Reward(e, target); err != nil {
			return err
		}
		alloc, err := amount.MulDiv(power, weights[i], weightSum)
		if err != nil {
			return err
		}
		if alloc == 0 {
			return fmt.Errorf("%w: zero allocation for target %s", ErrInvalidVote, target)
		}
		allocs[i] = alloc

		if rewards[i].Info.Votes, err = amount.Add(rewards[i].Info.Votes, alloc); err != nil {
			return err
		}
		if totals.Info.Votes, err = amount.Add(totals.Info.Votes, alloc); err != nil {
			return err
		}
		if err := retotal(&totals, &rewards[i]); err != nil {
			return err
		}
	}

	return l.store.Update(func(w StoreWriter) error {
		if err := w.SetVoted(e, voter); err != nil {
			return err
		}
		for i, target := range targets {
			if err := w.PutReward(e, target, rewards[i]); err != nil {
				return err
			}
		}
		if err := w.PutTotals(e, totals); err != nil {
			return err
		}
		for i, target := range targets {
			ev := Event{
				Type:   EventVoteCast,
				Epoch:  e,
				Actor:  voter,
				Target: target,
				Amount: allocs[i],
			}
			if err := l.emit(w, ev); err != nil {
				return err
			}
		}
		return nil
	})
}
