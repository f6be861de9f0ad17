package ledger

// EventType names a ledger state transition in the audit log.
type EventType string

// Audit event types. Every mutating operation appends exactly one event
// per logical state change; external indexers reconstruct ledger state
// from this stream alone.
const (
	EventBudgetAdded      EventType = "budget_added"
	EventBudgetRolledOver EventType = "budget_rolled_over"
	EventIncentiveAdded   EventType = "incentive_added"
	EventNonBaseAdded     EventType = "non_base_incentive_added"
	EventNonBaseApplied   EventType = "non_base_match_applied"
	EventVoteCast         EventType = "vote_cast"
	EventMultipliersSet   EventType = "multipliers_set"
	EventVetoCast         EventType = "veto_cast"
	EventDistributed      EventType = "distributed"
)

// Event is one append-only audit record. Seq is assigned by the store
// and is strictly increasing across the whole ledger. Fields that do
// not apply to a given type are zero.
type Event struct {
	Seq         uint64
	Type        EventType
	Epoch       uint64
	Actor       Address
	Target      Address
	Currency    Address
	MatchAmount uint64
	VoteAmount  uint64
	Amount      uint64
	Time        uint64
}
