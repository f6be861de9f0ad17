// Package ledger implements an epoch-based incentive-matching ledger.
//
// Matchers pre-fund per-epoch matching budgets, funders add incentives
// earmarked for reward targets, governance voters steer the vote budget
// across targets during the voting window, matchers may veto individual
// targets during the veto window, and once the veto window closes anyone
// may trigger distribution, which pays each (target, matcher) pair its
// matched amount. Unused budget can be rolled into a future epoch.
//
// The ledger owns every record it stores; external concerns (target
// eligibility, voting-power snapshots, token custody, payout streaming)
// are consumed through the collaborator interfaces below.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/epochmatch/libmatch-go/epoch"
)

// TargetRegistry certifies which reward targets are eligible to
// receive incentives.
//
// Implementations must not call back into the Ledger; mutating
// operations hold the ledger lock while consulting collaborators.
type TargetRegistry interface {
	// IsCertified reports whether target is a certified reward target.
	IsCertified(ctx context.Context, target Address) (bool, error)

	// HasStakingOption reports whether target offers a voting-escrow
	// staking option for the base currency.
	HasStakingOption(ctx context.Context, target, base Address) (bool, error)
}

// VotingPowerSource answers point-in-time voting-power snapshot queries.
type VotingPowerSource interface {
	// PastVotes returns voter's voting power at timestamp at.
	PastVotes(ctx context.Context, voter Address, at uint64) (uint64, error)

	// PastTotalSupply returns the total voting supply at timestamp at.
	PastTotalSupply(ctx context.Context, at uint64) (uint64, error)
}

// TokenCustody moves funds in and out of escrow. Deposit is invoked
// before the ledger commit so that a failed transfer leaves no record;
// Payout is invoked strictly after commit.
type TokenCustody interface {
	// Deposit escrows amount of currency from `from`.
	Deposit(ctx context.Context, from, currency Address, amount uint64) error

	// Payout releases amount of currency from escrow to `to`.
	Payout(ctx context.Context, to, currency Address, amount uint64) error
}

// PayoutNotifier tells a reward target that a matched payout has been
// transferred and over what duration it should be streamed. It returns
// the duration the target actually applied.
type PayoutNotifier interface {
	NotifyMatch(ctx context.Context, target Address, amount uint64, notifySeconds uint64) (uint64, error)
}

// Config assembles a Ledger. Store, Registry, VotingPower, Custody, and
// Notifier are required; Clock defaults to the real clock and Logger to
// a discarding logger.
type Config struct {
	Store       Store
	Registry    TargetRegistry
	VotingPower VotingPowerSource
	Custody     TokenCustody
	Notifier    PayoutNotifier

	Schedule epoch.Schedule
	Clock    clockwork.Clock
	Logger   *slog.Logger

	// BaseCurrency is the currency budgets and payouts are denominated
	// in. PermissionedCaller is the one identity allowed to call
	// PermissionedAddIncentives.
	BaseCurrency       Address
	PermissionedCaller Address
}

// Validate checks required collaborators and defaults the rest.
func (cfg *Config) Validate() error {
	if cfg.Store == nil {
		return errors.New("ledger: store is required")
	}
	if cfg.Registry == nil {
		return errors.New("ledger: target registry is required")
	}
	if cfg.VotingPower == nil {
		return errors.New("ledger: voting power source is required")
	}
	if cfg.Custody == nil {
		return errors.New("ledger: token custody is required")
	}
	if cfg.Notifier == nil {
		return errors.New("ledger: payout notifier is required")
	}
	if cfg.BaseCurrency.IsZero() {
		return errors.New("ledger: base currency is required")
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}

// Ledger is the accounting core. A single mutex serializes every
// mutating operation: each one validates, stages record copies, and
// commits through one atomic store batch only after all checks and
// collaborator debits succeed, so no caller ever observes a partially
// applied operation.
type Ledger struct {
	mu  sync.Mutex
	log *slog.Logger

	store    Store
	registry TargetRegistry
	power    VotingPowerSource
	custody  TokenCustody
	notifier PayoutNotifier

	sched epoch.Schedule
	clock clockwork.Clock

	base         Address
	permissioned Address
}

// New creates a Ledger from cfg.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		log:          cfg.Logger,
		store:        cfg.Store,
		registry:     cfg.Registry,
		power:        cfg.VotingPower,
		custody:      cfg.Custody,
		notifier:     cfg.Notifier,
		sched:        cfg.Schedule,
		clock:        cfg.Clock,
		base:         cfg.BaseCurrency,
		permissioned: cfg.PermissionedCaller,
	}, nil
}

// Schedule returns the epoch schedule the ledger runs on.
func (l *Ledger) Schedule() epoch.Schedule { return l.sched }

// now returns the current unix-second timestamp from the clock.
func (l *Ledger) now() uint64 {
	return uint64(l.clock.Now().Unix())
}

// checkEpoch rejects epoch arguments that are not period aligned.
func (l *Ledger) checkEpoch(e uint64) error {
	return l.sched.CheckEpoch(e)
}

// emit appends an audit event stamped with the current time to the
// batch being committed through w, so the event lands in the same
// atomic unit as the state change it records.
func (l *Ledger) emit(w StoreWriter, ev Event) error {
	ev.Time = l.now()
	if _, err := w.AppendEvent(ev); err != nil {
		return fmt.Errorf("ledger: append %s event: %w", ev.Type, err)
	}
	l.log.Debug("ledger event",
		"type", string(ev.Type),
		"epoch", ev.Epoch,
		"actor", ev.Actor.String(),
		"target", ev.Target.String(),
		"amount", ev.Amount,
	)
	return nil
}
