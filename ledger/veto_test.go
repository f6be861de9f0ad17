package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vetoFixture funds a matcher, gives the target incentives and votes,
// and advances into epoch0's veto window.
func vetoFixture(t *testing.T) (*fixture, Address, Address) {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	matcher, target := addr(1), addr(10)
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, matcher, 100, 50, epoch0))
	require.NoError(t, f.ledger.AddIncentives(ctx, addr(2), target, 40))
	f.toVoting()
	require.NoError(t, f.ledger.Vote(ctx, addr(3), []Address{target}, []uint64{1}))
	f.toVeto()
	return f, matcher, target
}

func TestVeto(t *testing.T) {
	f, matcher, target := vetoFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Veto(ctx, matcher, target))

	// Voter power is PowerScale/10, so the target carries votes 1e7 and
	// weighted product 40 * 1e7.
	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), m.ExternalIncentivesDeduction)
	assert.Equal(t, uint64(40)*PowerScale/10, m.VoteProductDeduction)

	pair, err := f.ledger.MatchRewardRecordAt(epoch0, matcher, target)
	require.NoError(t, err)
	assert.Equal(t, MatchVetoed, pair.State)
	assert.True(t, pair.State.Vetoed())
	assert.False(t, pair.State.Distributed())

	// The target's own record and the epoch aggregates are untouched:
	// a veto is scoped to the matcher.
	r, err := f.ledger.RewardRecordAt(epoch0, target)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), r.Info.ExternalIncentives)
	totals, err := f.ledger.EpochTotals(epoch0)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), totals.Info.ExternalIncentives)

	events, err := f.ledger.EpochEvents(epoch0)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, EventVetoCast, last.Type)
	assert.Equal(t, matcher, last.Actor)
	assert.Equal(t, target, last.Target)
}

func TestVetoOneShot(t *testing.T) {
	f, matcher, target := vetoFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Veto(ctx, matcher, target))
	err := f.ledger.Veto(ctx, matcher, target)
	require.ErrorIs(t, err, ErrAlreadyVetoed)

	// Deductions must not have been double counted.
	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), m.ExternalIncentivesDeduction)
}

func TestVetoOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, addr(1), 100, 0, epoch0))

	// Mid-epoch: the previous epoch's veto window has closed and this
	// epoch has not ended yet.
	f.toVoting()
	err := f.ledger.Veto(ctx, addr(1), addr(10))
	require.ErrorIs(t, err, ErrVetoPeriodNotActive)

	// Past the veto window it is too late.
	f.toSettled()
	err = f.ledger.Veto(ctx, addr(1), addr(10))
	require.ErrorIs(t, err, ErrVetoPeriodNotActive)
}

func TestVetoRequiresBudget(t *testing.T) {
	f := newFixture(t)
	f.toVeto()
	err := f.ledger.Veto(context.Background(), addr(1), addr(10))
	require.ErrorIs(t, err, ErrNoBudget)
}

func TestVetoAccumulatesAcrossTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matcher := addr(1)
	a, b := addr(10), addr(11)
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, matcher, 100, 50, epoch0))
	require.NoError(t, f.ledger.AddIncentives(ctx, addr(2), a, 40))
	require.NoError(t, f.ledger.AddIncentives(ctx, addr(2), b, 60))
	f.toVeto()

	require.NoError(t, f.ledger.Veto(ctx, matcher, a))
	require.NoError(t, f.ledger.Veto(ctx, matcher, b))

	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), m.ExternalIncentivesDeduction, "deductions accumulate")
}
