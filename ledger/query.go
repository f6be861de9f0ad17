package ledger

// Read-only query surface. Every method validates the epoch argument,
// is free of side effects, and returns identical results for identical
// arguments absent an intervening mutation.

// EpochTotals returns the epoch-wide budget and activity aggregates.
func (l *Ledger) EpochTotals(e uint64) (EpochTotals, error) {
	if err := l.checkEpoch(e); err != nil {
		return EpochTotals{}, err
	}
	return l.store.Totals(e)
}

// MatcherRecordAt returns matcher's escrow record for epoch e. A
// matcher that never contributed (or was rolled over) reads as zero.
func (l *Ledger) MatcherRecordAt(e uint64, matcher Address) (MatcherRecord, error) {
	if err := l.checkEpoch(e); err != nil {
		return MatcherRecord{}, err
	}
	return l.store.Matcher(e, matcher)
}

// RewardRecordAt returns target's activity checkpoint for epoch e.
func (l *Ledger) RewardRecordAt(e uint64, target Address) (RewardRecord, error) {
	if err := l.checkEpoch(e); err != nil {
		return RewardRecord{}, err
	}
	return l.store.Reward(e, target)
}

// MatchRewardRecordAt returns the settlement record for the
// (epoch, matcher, target) triple.
func (l *Ledger) MatchRewardRecordAt(e uint64, matcher, target Address) (MatchRewardRecord, error) {
	if err := l.checkEpoch(e); err != nil {
		return MatchRewardRecord{}, err
	}
	return l.store.MatchReward(e, matcher, target)
}

// HasVoted reports whether voter has cast their vote for epoch e.
func (l *Ledger) HasVoted(e uint64, voter Address) (bool, error) {
	if err := l.checkEpoch(e); err != nil {
		return false, err
	}
	return l.store.HasVoted(e, voter)
}

// NonBaseIncentiveAt returns the raw unconverted amount contributed in
// currency for target during epoch e.
func (l *Ledger) NonBaseIncentiveAt(e uint64, currency, target Address) (uint64, error) {
	if err := l.checkEpoch(e); err != nil {
		return 0, err
	}
	return l.store.NonBaseIncentive(e, currency, target)
}

// ActiveTargets returns the slice [start, end) of epoch e's
// active-target list in insertion order, clipped to the list length.
func (l *Ledger) ActiveTargets(e uint64, start, end int) ([]Address, error) {
	if err := l.checkEpoch(e); err != nil {
		return nil, err
	}
	list, err := l.store.Targets(e)
	if err != nil {
		return nil, err
	}
	return clip(list, start, end), nil
}

// EpochMatchers returns the slice [start, end) of epoch e's matcher
// list in insertion order, clipped to the list length.
func (l *Ledger) EpochMatchers(e uint64, start, end int) ([]Address, error) {
	if err := l.checkEpoch(e); err != nil {
		return nil, err
	}
	list, err := l.store.Matchers(e)
	if err != nil {
		return nil, err
	}
	return clip(list, start, end), nil
}

// EpochEvents returns epoch e's audit events in sequence order.
func (l *Ledger) EpochEvents(e uint64) ([]Event, error) {
	if err := l.checkEpoch(e); err != nil {
		return nil, err
	}
	return l.store.Events(e)
}

// clip bounds [start, end) to the list, returning nil for an empty or
// inverted window.
func clip(list []Address, start, end int) []Address {
	if start < 0 {
		start = 0
	}
	if end > len(list) {
		end = len(list)
	}
	if start >= end {
		return nil
	}
	return list[start:end]
}
