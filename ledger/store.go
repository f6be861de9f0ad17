package ledger

import "sync"

// StoreWriter is the write surface of a Store. Writes made through the
// writer handed to Update commit together; the same methods called
// directly on a Store commit one record at a time.
type StoreWriter interface {
	// PutTotals stores the epoch-wide aggregates for epoch.
	PutTotals(epoch uint64, t EpochTotals) error

	// PutReward stores the (epoch, target) activity checkpoint.
	PutReward(epoch uint64, target Address, r RewardRecord) error

	// PutMatcher stores the (epoch, matcher) escrow record.
	PutMatcher(epoch uint64, matcher Address, m MatcherRecord) error

	// DeleteMatcher clears the (epoch, matcher) escrow record entirely.
	// Subsequent reads observe a zero record.
	DeleteMatcher(epoch uint64, matcher Address) error

	// PutMatchReward stores the (epoch, matcher, target) settlement record.
	PutMatchReward(epoch uint64, matcher, target Address, r MatchRewardRecord) error

	// SetVoted marks voter as having voted in epoch.
	SetVoted(epoch uint64, voter Address) error

	// PutNonBaseIncentive stores the raw non-base amount for the
	// (epoch, currency, target) key.
	PutNonBaseIncentive(epoch uint64, currency, target Address, amt uint64) error

	// AppendTarget appends target to epoch's active-target list.
	AppendTarget(epoch uint64, target Address) error

	// AppendMatcher appends matcher to epoch's matcher list.
	AppendMatcher(epoch uint64, matcher Address) error

	// AppendEvent appends ev to the audit log, assigns its sequence
	// number, and returns it.
	AppendEvent(ev Event) (uint64, error)
}

// Store persists the composite-keyed ledger records. Reads of records
// that were never written return zero values: epochs are created
// implicitly on first write and remain queryable forever.
//
// The Ledger serializes operations above this interface and commits
// each multi-record mutation through Update, so a crash or write error
// mid-operation never leaves a partially applied commit.
type Store interface {
	StoreWriter

	// Update runs fn against a batch writer and applies every write fn
	// makes as one atomic unit: an error from fn (or from the commit)
	// discards the whole batch.
	Update(fn func(w StoreWriter) error) error

	// Totals returns the epoch-wide aggregates for epoch.
	Totals(epoch uint64) (EpochTotals, error)

	// Reward returns the (epoch, target) activity checkpoint.
	Reward(epoch uint64, target Address) (RewardRecord, error)

	// Matcher returns the (epoch, matcher) escrow record.
	Matcher(epoch uint64, matcher Address) (MatcherRecord, error)

	// MatchReward returns the (epoch, matcher, target) settlement record.
	MatchReward(epoch uint64, matcher, target Address) (MatchRewardRecord, error)

	// HasVoted reports whether voter already voted in epoch.
	HasVoted(epoch uint64, voter Address) (bool, error)

	// NonBaseIncentive returns the raw unconverted amount contributed in
	// currency for target during epoch.
	NonBaseIncentive(epoch uint64, currency, target Address) (uint64, error)

	// Targets returns epoch's active-target list in insertion order.
	Targets(epoch uint64) ([]Address, error)

	// Matchers returns epoch's matcher list in insertion order.
	Matchers(epoch uint64) ([]Address, error)

	// Events returns all audit events recorded for epoch in sequence
	// order.
	Events(epoch uint64) ([]Event, error)
}

type matcherKey struct {
	epoch uint64
	addr  Address
}

type targetKey struct {
	epoch uint64
	addr  Address
}

type pairKey struct {
	epoch   uint64
	matcher Address
	target  Address
}

type currencyKey struct {
	epoch    uint64
	currency Address
	target   Address
}

// MemStore is an in-memory Store. It is the default store and the one
// used throughout the tests.
type MemStore struct {
	mu           sync.RWMutex
	totals       map[uint64]EpochTotals
	rewards      map[targetKey]RewardRecord
	matchers     map[matcherKey]MatcherRecord
	matchRewards map[pairKey]MatchRewardRecord
	voted        map[matcherKey]bool
	nonBase      map[currencyKey]uint64
	targetList   map[uint64][]Address
	matcherList  map[uint64][]Address
	events       []Event
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		totals:       make(map[uint64]EpochTotals),
		rewards:      make(map[targetKey]RewardRecord),
		matchers:     make(map[matcherKey]MatcherRecord),
		matchRewards: make(map[pairKey]MatchRewardRecord),
		voted:        make(map[matcherKey]bool),
		nonBase:      make(map[currencyKey]uint64),
		targetList:   make(map[uint64][]Address),
		matcherList:  make(map[uint64][]Address),
	}
}

// Totals returns the epoch-wide aggregates for epoch.
func (s *MemStore) Totals(epoch uint64) (EpochTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals[epoch], nil
}

// PutTotals stores the epoch-wide aggregates for epoch.
func (s *MemStore) PutTotals(epoch uint64, t EpochTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[epoch] = t
	return nil
}

// Reward returns the (epoch, target) activity checkpoint.
func (s *MemStore) Reward(epoch uint64, target Address) (RewardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rewards[targetKey{epoch, target}], nil
}

// PutReward stores the (epoch, target) activity checkpoint.
func (s *MemStore) PutReward(epoch uint64, target Address, r RewardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[targetKey{epoch, target}] = r
	return nil
}

// Matcher returns the (epoch, matcher) escrow record.
func (s *MemStore) Matcher(epoch uint64, matcher Address) (MatcherRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.matchers[matcherKey{epoch, matcher}]
	if len(m.Multipliers) > 0 {
		// Return a copy so callers cannot mutate stored state.
		mult := make([]TokenMultiplier, len(m.Multipliers))
		copy(mult, m.Multipliers)
		m.Multipliers = mult
	}
	return m, nil
}

// PutMatcher stores the (epoch, matcher) escrow record.
func (s *MemStore) PutMatcher(epoch uint64, matcher Address, m MatcherRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchers[matcherKey{epoch, matcher}] = m
	return nil
}

// DeleteMatcher clears the (epoch, matcher) escrow record entirely.
func (s *MemStore) DeleteMatcher(epoch uint64, matcher Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matchers, matcherKey{epoch, matcher})
	return nil
}

// MatchReward returns the (epoch, matcher, target) settlement record.
func (s *MemStore) MatchReward(epoch uint64, matcher, target Address) (MatchRewardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchRewards[pairKey{epoch, matcher, target}], nil
}

// PutMatchReward stores the (epoch, matcher, target) settlement record.
func (s *MemStore) PutMatchReward(epoch uint64, matcher, target Address, r MatchRewardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchRewards[pairKey{epoch, matcher, target}] = r
	return nil
}

// HasVoted reports whether voter already voted in epoch.
func (s *MemStore) HasVoted(epoch uint64, voter Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voted[matcherKey{epoch, voter}], nil
}

// SetVoted marks voter as having voted in epoch.
func (s *MemStore) SetVoted(epoch uint64, voter Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voted[matcherKey{epoch, voter}] = true
	return nil
}

// NonBaseIncentive returns the raw non-base amount for the key.
func (s *MemStore) NonBaseIncentive(epoch uint64, currency, target Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonBase[currencyKey{epoch, currency, target}], nil
}

// PutNonBaseIncentive stores the raw non-base amount for the key.
func (s *MemStore) PutNonBaseIncentive(epoch uint64, currency, target Address, amt uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonBase[currencyKey{epoch, currency, target}] = amt
	return nil
}

// Targets returns epoch's active-target list in insertion order.
func (s *MemStore) Targets(epoch uint64) ([]Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.targetList[epoch]
	out := make([]Address, len(list))
	copy(out, list)
	return out, nil
}

// AppendTarget appends target to epoch's active-target list.
func (s *MemStore) AppendTarget(epoch uint64, target Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetList[epoch] = append(s.targetList[epoch], target)
	return nil
}

// Matchers returns epoch's matcher list in insertion order.
func (s *MemStore) Matchers(epoch uint64) ([]Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.matcherList[epoch]
	out := make([]Address, len(list))
	copy(out, list)
	return out, nil
}

// AppendMatcher appends matcher to epoch's matcher list.
func (s *MemStore) AppendMatcher(epoch uint64, matcher Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matcherList[epoch] = append(s.matcherList[epoch], matcher)
	return nil
}

// AppendEvent appends ev to the audit log and returns its sequence.
func (s *MemStore) AppendEvent(ev Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Seq = uint64(len(s.events)) + 1
	s.events = append(s.events, ev)
	return ev.Seq, nil
}

// Update stages every write fn makes and merges the batch into the
// store only when fn returns nil; an error discards the whole batch.
func (s *MemStore) Update(fn func(w StoreWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &memBatch{
		s:               s,
		totals:          make(map[uint64]EpochTotals),
		rewards:         make(map[targetKey]RewardRecord),
		matchers:        make(map[matcherKey]MatcherRecord),
		deletedMatchers: make(map[matcherKey]bool),
		matchRewards:    make(map[pairKey]MatchRewardRecord),
		voted:           make(map[matcherKey]bool),
		nonBase:         make(map[currencyKey]uint64),
		targetAppends:   make(map[uint64][]Address),
		matcherAppends:  make(map[uint64][]Address),
	}
	if err := fn(b); err != nil {
		return err
	}
	b.merge()
	return nil
}

// memBatch stages one Update's writes. It holds only the batch's own
// state; the store lock is already held for the whole Update.
type memBatch struct {
	s               *MemStore
	totals          map[uint64]EpochTotals
	rewards         map[targetKey]RewardRecord
	matchers        map[matcherKey]MatcherRecord
	deletedMatchers map[matcherKey]bool
	matchRewards    map[pairKey]MatchRewardRecord
	voted           map[matcherKey]bool
	nonBase         map[currencyKey]uint64
	targetAppends   map[uint64][]Address
	matcherAppends  map[uint64][]Address
	events          []Event
}

// Compile-time interface check.
var _ StoreWriter = (*memBatch)(nil)

func (b *memBatch) PutTotals(epoch uint64, t EpochTotals) error {
	b.totals[epoch] = t
	return nil
}

func (b *memBatch) PutReward(epoch uint64, target Address, r RewardRecord) error {
	b.rewards[targetKey{epoch, target}] = r
	return nil
}

func (b *memBatch) PutMatcher(epoch uint64, matcher Address, m MatcherRecord) error {
	k := matcherKey{epoch, matcher}
	b.matchers[k] = m
	delete(b.deletedMatchers, k)
	return nil
}

func (b *memBatch) DeleteMatcher(epoch uint64, matcher Address) error {
	k := matcherKey{epoch, matcher}
	b.deletedMatchers[k] = true
	delete(b.matchers, k)
	return nil
}

func (b *memBatch) PutMatchReward(epoch uint64, matcher, target Address, r MatchRewardRecord) error {
	b.matchRewards[pairKey{epoch, matcher, target}] = r
	return nil
}

func (b *memBatch) SetVoted(epoch uint64, voter Address) error {
	b.voted[matcherKey{epoch, voter}] = true
	return nil
}

func (b *memBatch) PutNonBaseIncentive(epoch uint64, currency, target Address, amt uint64) error {
	b.nonBase[currencyKey{epoch, currency, target}] = amt
	return nil
}

func (b *memBatch) AppendTarget(epoch uint64, target Address) error {
	b.targetAppends[epoch] = append(b.targetAppends[epoch], target)
	return nil
}

func (b *memBatch) AppendMatcher(epoch uint64, matcher Address) error {
	b.matcherAppends[epoch] = append(b.matcherAppends[epoch], matcher)
	return nil
}

func (b *memBatch) AppendEvent(ev Event) (uint64, error) {
	ev.Seq = uint64(len(b.s.events)+len(b.events)) + 1
	b.events = append(b.events, ev)
	return ev.Seq, nil
}

// merge applies the staged batch to the store.
func (b *memBatch) merge() {
	s := b.s
	for k, v := range b.totals {
		s.totals[k] = v
	}
	for k, v := range b.rewards {
		s.rewards[k] = v
	}
	for k := range b.deletedMatchers {
		delete(s.matchers, k)
	}
	for k, v := range b.matchers {
		s.matchers[k] = v
	}
	for k, v := range b.matchRewards {
		s.matchRewards[k] = v
	}
	for k := range b.voted {
		s.voted[k] = true
	}
	for k, v := range b.nonBase {
		s.nonBase[k] = v
	}
	for e, list := range b.targetAppends {
		s.targetList[e] = append(s.targetList[e], list...)
	}
	for e, list := range b.matcherAppends {
		s.matcherList[e] = append(s.matcherList[e], list...)
	}
	s.events = append(s.events, b.events...)
}

// Events returns all audit events recorded for epoch in sequence order.
func (s *MemStore) Events(epoch uint64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Epoch == epoch {
			out = append(out, ev)
		}
	}
	return out, nil
}
