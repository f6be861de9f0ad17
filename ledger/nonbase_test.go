package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochmatch/libmatch-go/epoch"
)

var (
	tokenX = addr(0xE0)
	tokenY = addr(0xE1)
)

func TestSetTokenMultipliers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matcher := addr(1)
	list := []TokenMultiplier{
		{Currency: tokenX, Multiplier: MultiplierScale / 2},
		{Currency: tokenY, Multiplier: 0},
	}

	require.NoError(t, f.ledger.SetTokenMultipliers(ctx, matcher, list, epoch0))

	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, list, m.Multipliers, "list is stored verbatim")

	err = f.ledger.SetTokenMultipliers(ctx, matcher, list, epoch0)
	require.ErrorIs(t, err, ErrMultipliersAlreadySet)
}

func TestSetTokenMultipliersAfterEpochEnd(t *testing.T) {
	f := newFixture(t)
	f.toVeto()
	err := f.ledger.SetTokenMultipliers(context.Background(), addr(1),
		[]TokenMultiplier{{Currency: tokenX, Multiplier: MultiplierScale}}, epoch0)
	require.ErrorIs(t, err, ErrEpochEnded)
}

func TestSetTokenMultipliersInvalidEpoch(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.SetTokenMultipliers(context.Background(), addr(1), nil, epoch0+1)
	require.ErrorIs(t, err, epoch.ErrInvalidEpoch)
}

// nonBaseFixture funds a matcher at half-rate for tokenX, gives the
// target 40 base incentives, one full vote, and a 100 tokenX pool, then
// ends the epoch.
func nonBaseFixture(t *testing.T) (*fixture, Address, Address) {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	matcher, target := addr(1), addr(10)
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, matcher, 100, 50, epoch0))
	require.NoError(t, f.ledger.SetTokenMultipliers(ctx, matcher, []TokenMultiplier{
		{Currency: tokenX, Multiplier: MultiplierScale / 2},
		{Currency: tokenY, Multiplier: 0},
	}, epoch0))
	require.NoError(t, f.ledger.AddIncentives(ctx, addr(2), target, 40))
	require.NoError(t, f.ledger.AddNonBaseTokenIncentives(ctx, addr(2), target, 100, tokenX))
	f.toVoting()
	require.NoError(t, f.ledger.Vote(ctx, addr(3), []Address{target}, []uint64{1}))
	f.toVeto()
	return f, matcher, target
}

func TestApplyNonBaseTokenMatch(t *testing.T) {
	f, matcher, target := nonBaseFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 0, epoch0))

	// 100 tokenX at a half multiplier converts to 50 base credit.
	pair, err := f.ledger.MatchRewardRecordAt(epoch0, matcher, target)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), pair.NonBaseExternalIncentives)

	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), m.NonBaseExternalIncentives)

	// The pair's weight is re-derived from the combined incentives:
	// (40 base + 50 converted) * 1e7 votes. The adjusted weight
	// supersedes the pair's base-only weight inside the matcher's
	// aggregate; with one target the aggregate is the pair's weight.
	votes := uint64(PowerScale / 10)
	assert.Equal(t, 90*votes, pair.NonBaseWeightedProduct)
	assert.Equal(t, 90*votes, m.NonBaseWeightedProduct)

	events, err := f.ledger.EpochEvents(epoch0)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, EventNonBaseApplied, last.Type)
	assert.Equal(t, tokenX, last.Currency)
	assert.Equal(t, uint64(50), last.Amount)
}

func TestApplyNonBaseTokenMatchRepeatSupersedes(t *testing.T) {
	f, matcher, target := nonBaseFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 0, epoch0))
	require.NoError(t, f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 0, epoch0))

	// A repeat application re-credits the stored pool, and the
	// recomputed weight replaces the prior one in the aggregate rather
	// than stacking on top of it.
	votes := uint64(PowerScale / 10)
	pair, err := f.ledger.MatchRewardRecordAt(epoch0, matcher, target)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), pair.NonBaseExternalIncentives)
	assert.Equal(t, 140*votes, pair.NonBaseWeightedProduct)

	m, err := f.ledger.MatcherRecordAt(epoch0, matcher)
	require.NoError(t, err)
	assert.Equal(t, 140*votes, m.NonBaseWeightedProduct)
}

func TestApplyNonBaseTokenMatchBeforeEpochEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, addr(1), 100, 0, epoch0))
	err := f.ledger.ApplyNonBaseTokenMatch(ctx, addr(10), addr(1), 0, epoch0)
	require.ErrorIs(t, err, ErrEpochNotEnded)
}

func TestApplyNonBaseTokenMatchBadIndex(t *testing.T) {
	f, matcher, target := nonBaseFixture(t)
	ctx := context.Background()

	err := f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 2, epoch0)
	require.ErrorIs(t, err, ErrInvalidIncentiveToken)
	err = f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, -1, epoch0)
	require.ErrorIs(t, err, ErrInvalidIncentiveToken)

	// Index 1 exists but carries a zero multiplier: not matched.
	err = f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 1, epoch0)
	require.ErrorIs(t, err, ErrInvalidIncentiveToken)
}

func TestApplyNonBaseTokenMatchEmptyPool(t *testing.T) {
	f, matcher, _ := nonBaseFixture(t)
	// addr(11) never received tokenX incentives.
	err := f.ledger.ApplyNonBaseTokenMatch(context.Background(), addr(11), matcher, 0, epoch0)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestApplyNonBaseTokenMatchNoBudget(t *testing.T) {
	f, _, target := nonBaseFixture(t)
	ctx := context.Background()

	// A matcher may publish multipliers without ever funding budget;
	// conversion against it must still be refused.
	broke := addr(5)
	// Rewind is impossible on the fake clock, so set the multipliers on
	// the next epoch and pool incentives there instead.
	next := epoch0 + periodSec
	require.NoError(t, f.ledger.SetTokenMultipliers(ctx, broke, []TokenMultiplier{
		{Currency: tokenX, Multiplier: MultiplierScale},
	}, next))
	require.NoError(t, f.ledger.AddNonBaseTokenIncentives(ctx, addr(2), target, 10, tokenX))
	f.advanceTo(f.ledger.sched.End(next))

	err := f.ledger.ApplyNonBaseTokenMatch(ctx, target, broke, 0, next)
	require.ErrorIs(t, err, ErrNoBudget)
}

func TestApplyNonBaseTokenMatchVetoedPair(t *testing.T) {
	f, matcher, target := nonBaseFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Veto(ctx, matcher, target))
	err := f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 0, epoch0)
	require.ErrorIs(t, err, ErrAlreadyVetoed)
}

func TestApplyNonBaseTokenMatchDistributedPair(t *testing.T) {
	f, matcher, target := nonBaseFixture(t)
	ctx := context.Background()

	f.toSettled()
	require.NoError(t, f.ledger.Distribute(ctx, target, matcher, epoch0))
	err := f.ledger.ApplyNonBaseTokenMatch(ctx, target, matcher, 0, epoch0)
	require.ErrorIs(t, err, ErrAlreadyDistributed)
}
