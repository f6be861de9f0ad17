package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempBoltStore opens a BoltStore backed by a throwaway file and closes
// it when the test finishes.
func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestBoltStoreZeroReads(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	totals, err := s.Totals(e)
	require.NoError(t, err)
	assert.Equal(t, EpochTotals{}, totals)

	m, err := s.Matcher(e, addr(1))
	require.NoError(t, err)
	assert.True(t, m.IsZero())

	voted, err := s.HasVoted(e, addr(1))
	require.NoError(t, err)
	assert.False(t, voted)

	amt, err := s.NonBaseIncentive(e, addr(2), addr(3))
	require.NoError(t, err)
	assert.Zero(t, amt)

	targets, err := s.Targets(e)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestBoltStoreRoundTrips(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	wantTotals := EpochTotals{
		MatchBudget: 100,
		VoteBudget:  50,
		Info:        EpochInformation{Votes: 7, WeightedProduct: 280, ExternalIncentives: 40},
	}
	require.NoError(t, s.PutTotals(e, wantTotals))
	totals, err := s.Totals(e)
	require.NoError(t, err)
	assert.Equal(t, wantTotals, totals)

	wantReward := RewardRecord{Info: EpochInformation{
		Votes: 3, WeightedProduct: 120, ExternalIncentives: 40, Tracked: true,
	}}
	require.NoError(t, s.PutReward(e, addr(10), wantReward))
	r, err := s.Reward(e, addr(10))
	require.NoError(t, err)
	assert.Equal(t, wantReward, r)

	wantMatcher := MatcherRecord{
		MatchBudget: 100,
		VoteBudget:  50,
		Multipliers: []TokenMultiplier{{Currency: addr(0xE0), Multiplier: MultiplierScale / 2}},
	}
	require.NoError(t, s.PutMatcher(e, addr(1), wantMatcher))
	m, err := s.Matcher(e, addr(1))
	require.NoError(t, err)
	assert.Equal(t, wantMatcher, m)

	wantPair := MatchRewardRecord{State: MatchVetoed, NonBaseExternalIncentives: 5}
	require.NoError(t, s.PutMatchReward(e, addr(1), addr(10), wantPair))
	pair, err := s.MatchReward(e, addr(1), addr(10))
	require.NoError(t, err)
	assert.Equal(t, wantPair, pair)

	require.NoError(t, s.PutNonBaseIncentive(e, addr(0xE0), addr(10), 42))
	amt, err := s.NonBaseIncentive(e, addr(0xE0), addr(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amt)
}

func TestBoltStoreCompositeKeyIsolation(t *testing.T) {
	s := tempBoltStore(t)
	e1, e2 := uint64(1209600), uint64(2419200)

	require.NoError(t, s.PutMatcher(e1, addr(1), MatcherRecord{MatchBudget: 10}))
	require.NoError(t, s.PutMatcher(e2, addr(1), MatcherRecord{MatchBudget: 20}))
	require.NoError(t, s.PutMatcher(e1, addr(2), MatcherRecord{MatchBudget: 30}))

	m, err := s.Matcher(e1, addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), m.MatchBudget)
	m, err = s.Matcher(e2, addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), m.MatchBudget)

	// Three-part keys must not collide across (matcher, target) swaps.
	require.NoError(t, s.PutMatchReward(e1, addr(1), addr(2), MatchRewardRecord{NonBaseExternalIncentives: 1}))
	pair, err := s.MatchReward(e1, addr(2), addr(1))
	require.NoError(t, err)
	assert.Zero(t, pair.NonBaseExternalIncentives)
}

func TestBoltStoreDeleteMatcher(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	require.NoError(t, s.PutMatcher(e, addr(1), MatcherRecord{MatchBudget: 10}))
	require.NoError(t, s.DeleteMatcher(e, addr(1)))

	m, err := s.Matcher(e, addr(1))
	require.NoError(t, err)
	assert.True(t, m.IsZero())

	// Deleting an absent record is not an error.
	require.NoError(t, s.DeleteMatcher(e, addr(9)))
}

func TestBoltStoreVotedFlag(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	require.NoError(t, s.SetVoted(e, addr(1)))
	voted, err := s.HasVoted(e, addr(1))
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = s.HasVoted(e+1209600, addr(1))
	require.NoError(t, err)
	assert.False(t, voted, "flag is scoped to its epoch")
}

func TestBoltStoreAddressLists(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	require.NoError(t, s.AppendTarget(e, addr(3)))
	require.NoError(t, s.AppendTarget(e, addr(1)))
	require.NoError(t, s.AppendTarget(e, addr(2)))
	targets, err := s.Targets(e)
	require.NoError(t, err)
	assert.Equal(t, []Address{addr(3), addr(1), addr(2)}, targets, "insertion order, not sorted")

	require.NoError(t, s.AppendMatcher(e, addr(7)))
	matchers, err := s.Matchers(e)
	require.NoError(t, err)
	assert.Equal(t, []Address{addr(7)}, matchers)

	other, err := s.Targets(e + 1209600)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBoltStoreEvents(t *testing.T) {
	s := tempBoltStore(t)
	e1, e2 := uint64(1209600), uint64(2419200)

	seq1, err := s.AppendEvent(Event{Type: EventBudgetAdded, Epoch: e1, Amount: 10})
	require.NoError(t, err)
	seq2, err := s.AppendEvent(Event{Type: EventVoteCast, Epoch: e2})
	require.NoError(t, err)
	seq3, err := s.AppendEvent(Event{Type: EventDistributed, Epoch: e1, Amount: 20})
	require.NoError(t, err)
	assert.Less(t, seq1, seq2)
	assert.Less(t, seq2, seq3)

	events, err := s.Events(e1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventBudgetAdded, events[0].Type)
	assert.Equal(t, seq1, events[0].Seq)
	assert.Equal(t, EventDistributed, events[1].Type)
	assert.Equal(t, seq3, events[1].Seq)
}

func TestBoltStoreUpdateAtomicity(t *testing.T) {
	s := tempBoltStore(t)
	e := uint64(1209600)

	require.NoError(t, s.PutMatcher(e, addr(1), MatcherRecord{MatchBudget: 10}))

	// The failing batch rolls back every write, including the deletion
	// of the pre-existing record and the event's sequence number.
	errBoom := errors.New("boom")
	err := s.Update(func(w StoreWriter) error {
		require.NoError(t, w.DeleteMatcher(e, addr(1)))
		require.NoError(t, w.PutTotals(e, EpochTotals{MatchBudget: 100}))
		require.NoError(t, w.SetVoted(e, addr(3)))
		_, err := w.AppendEvent(Event{Type: EventBudgetAdded, Epoch: e})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	m, err := s.Matcher(e, addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), m.MatchBudget)
	totals, err := s.Totals(e)
	require.NoError(t, err)
	assert.Equal(t, EpochTotals{}, totals)
	voted, err := s.HasVoted(e, addr(3))
	require.NoError(t, err)
	assert.False(t, voted)
	events, err := s.Events(e)
	require.NoError(t, err)
	assert.Empty(t, events)

	// A successful batch lands whole and sequences from 1.
	err = s.Update(func(w StoreWriter) error {
		if err := w.PutTotals(e, EpochTotals{VoteBudget: 50}); err != nil {
			return err
		}
		seq, err := w.AppendEvent(Event{Type: EventVoteCast, Epoch: e})
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(1), seq)
		return nil
	})
	require.NoError(t, err)
	totals, err = s.Totals(e)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), totals.VoteBudget)
	events, err = s.Events(e)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
}

func TestLedgerOverBoltStore(t *testing.T) {
	f := newFixture(t)
	f.ledger.store = tempBoltStore(t)
	ctx := context.Background()
	matcher := addr(1)
	next := epoch0 + periodSec

	// Budget, incentive, vote, and rollover each commit several records
	// plus an audit event; run them end to end on the durable store.
	require.NoError(t, f.ledger.AddMatchingBudget(ctx, matcher, 100, 50, epoch0))
	require.NoError(t, f.ledger.AddIncentives(ctx, addr(2), addr(10), 40))
	f.toVoting()
	require.NoError(t, f.ledger.Vote(ctx, addr(3), []Address{addr(10)}, []uint64{1}))
	f.toSettled()
	require.NoError(t, f.ledger.Distribute(ctx, addr(10), matcher, epoch0))
	require.NoError(t, f.ledger.RolloverExcessBudget(ctx, matcher, epoch0, next))

	m, err := f.ledger.MatcherRecordAt(next, matcher)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), m.MatchBudget)

	events, err := f.ledger.EpochEvents(epoch0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventBudgetRolledOver, events[len(events)-1].Type)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")
	e := uint64(1209600)

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutTotals(e, EpochTotals{MatchBudget: 100}))
	require.NoError(t, s.AppendTarget(e, addr(1)))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	totals, err := s.Totals(e)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), totals.MatchBudget)
	targets, err := s.Targets(e)
	require.NoError(t, err)
	assert.Equal(t, []Address{addr(1)}, targets)
}
