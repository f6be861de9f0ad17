package ledger

import "context"

// MockRegistry is a test double for TargetRegistry.
// All function fields must be set before the corresponding method is called.
type MockRegistry struct {
	IsCertifiedFn      func(ctx context.Context, target Address) (bool, error)
	HasStakingOptionFn func(ctx context.Context, target, base Address) (bool, error)
}

func (m *MockRegistry) IsCertified(ctx context.Context, target Address) (bool, error) {
	return m.IsCertifiedFn(ctx, target)
}
func (m *MockRegistry) HasStakingOption(ctx context.Context, target, base Address) (bool, error) {
	return m.HasStakingOptionFn(ctx, target, base)
}

// MockVotingPower is a test double for VotingPowerSource.
type MockVotingPower struct {
	PastVotesFn       func(ctx context.Context, voter Address, at uint64) (uint64, error)
	PastTotalSupplyFn func(ctx context.Context, at uint64) (uint64, error)
}

func (m *MockVotingPower) PastVotes(ctx context.Context, voter Address, at uint64) (uint64, error) {
	return m.PastVotesFn(ctx, voter, at)
}
func (m *MockVotingPower) PastTotalSupply(ctx context.Context, at uint64) (uint64, error) {
	return m.PastTotalSupplyFn(ctx, at)
}

// MockCustody is a test double for TokenCustody.
type MockCustody struct {
	DepositFn func(ctx context.Context, from, currency Address, amount uint64) error
	PayoutFn  func(ctx context.Context, to, currency Address, amount uint64) error
}

func (m *MockCustody) Deposit(ctx context.Context, from, currency Address, amount uint64) error {
	return m.DepositFn(ctx, from, currency, amount)
}
func (m *MockCustody) Payout(ctx context.Context, to, currency Address, amount uint64) error {
	return m.PayoutFn(ctx, to, currency, amount)
}

// MockNotifier is a test double for PayoutNotifier.
type MockNotifier struct {
	NotifyMatchFn func(ctx context.Context, target Address, amount uint64, notifySeconds uint64) (uint64, error)
}

func (m *MockNotifier) NotifyMatch(ctx context.Context, target Address, amount uint64, notifySeconds uint64) (uint64, error) {
	return m.NotifyMatchFn(ctx, target, amount, notifySeconds)
}
