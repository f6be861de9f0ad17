package ledger

import (
	"context"
	"fmt"

	"github.com/epochmatch/libmatch-go/amount"
)

// AddMatchingBudget escrows matchAmt of match budget and voteAmt of
// vote budget for matcher in epoch e. At least one amount must be
// nonzero and e's funding window must still be open. The custody
// deposit and the ledger credit are atomic: a failed transfer leaves
// no record.
//
// The matcher is appended to e's matcher list on their first nonzero
// contribution only; repeat deposits never re-append.
func (l *Ledger) AddMatchingBudget(ctx context.Context, matcher Address, matchAmt, voteAmt, e uint64) (err error) {
	start := l.clock.Now()
	defer func() { observeOp("add_matching_budget", start, l.clock, err) }()
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.stageBudget(matcher, matchAmt, voteAmt, e)
	if err != nil {
		return err
	}

	total, err := amount.Add(matchAmt, voteAmt)
	if err != nil {
		return err
	}
	if err := l.custody.Deposit(ctx, matcher, l.base, total); err != nil {
		return fmt.Errorf("ledger: budget deposit: %w", err)
	}

	return l.store.Update(func(w StoreWriter) error {
		return l.writeBudget(w, matcher, matchAmt, voteAmt, e, st)
	})
}

// budgetStage holds the post-deposit records computed by stageBudget,
// ready to commit in one batch. Rollover shares this path, re-entering
// without a custody transfer because rolled funds are already escrowed.
type budgetStage struct {
	m      MatcherRecord
	totals EpochTotals
	first  bool
}

// stageBudget validates a deposit against e's funding window and
// computes the credited records without committing anything.
func (l *Ledger) stageBudget(matcher Address, matchAmt, voteAmt, e uint64) (budgetStage, error) {
	var st budgetStage
	if err := l.checkEpoch(e); err != nil {
		return st, err
	}
	if matchAmt == 0 && voteAmt == 0 {
		return st, fmt.Errorf("%w: matcher %s epoch %d", ErrZeroAmount, matcher, e)
	}
	if now := l.now(); l.sched.IsOver(e, now) {
		return st, fmt.Errorf("%w: epoch %d at %d", ErrEpochEnded, e, now)
	}

	m, err := l.store.Matcher(e, matcher)
	if err != nil {
		return st, err
	}
	totals, err := l.store.Totals(e)
	if err != nil {
		return st, err
	}
	st.first = m.MatchBudget == 0 && m.VoteBudget == 0

	if m.MatchBudget, err = amount.Add(m.MatchBudget, matchAmt); err != nil {
		return st, err
	}
	if m.VoteBudget, err = amount.Add(m.VoteBudget, voteAmt); err != nil {
		return st, err
	}
	if totals.MatchBudget, err = amount.Add(totals.MatchBudget, matchAmt); err != nil {
		return st, err
	}
	if totals.VoteBudget, err = amount.Add(totals.VoteBudget, voteAmt); err != nil {
		return st, err
	}
	st.m, st.totals = m, totals
	return st, nil
}

// writeBudget commits a staged deposit and its audit event through w.
func (l *Ledger) writeBudget(w StoreWriter, matcher Address, matchAmt, voteAmt, e uint64, st budgetStage) error {
	if err := w.PutMatcher(e, matcher, st.m); err != nil {
		return err
	}
	if err := w.PutTotals(e, st.totals); err != nil {
		return err
	}
	if st.first {
		if err := w.AppendMatcher(e, matcher); err != nil {
			return err
		}
	}
	return l.emit(w, Event{
		Type:        EventBudgetAdded,
		Epoch:       e,
		Actor:       matcher,
		MatchAmount: matchAmt,
		VoteAmount:  voteAmt,
	})
}
