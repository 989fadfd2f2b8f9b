// Package server runs the arena's perpetual cycle: betting, countdown,
// battle, payout, then betting again. One Server owns all per-cycle state;
// everything observers see flows out through the configured Sink.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/arenadb"
	"github.com/arenabets/fightarena/fightsim"
	"github.com/arenabets/fightarena/paydispatch"
	"github.com/arenabets/fightarena/wager"
)

// Sink receives every event the arena emits. Implementations must not
// block; slow observers are the sink's problem, not the cycle's.
type Sink interface {
	Broadcast(ev fightarena.Event)
}

// Config assembles a Server. Log, DB, Dispatcher, Sink and Wallets are
// required; durations default to production values when zero.
type Config struct {
	Log        slog.Logger
	DB         arenadb.DB
	Dispatcher paydispatch.Dispatcher
	Sink       Sink

	Wallets      fightarena.WalletSet
	MinBet       float64
	HouseFeeRate float64

	BettingDuration   time.Duration
	CountdownDuration time.Duration
	PayoutDuration    time.Duration

	// FrameInterval paces the battle loop; zero or negative runs the
	// frames back to back, which tests use to finish battles instantly.
	FrameInterval time.Duration

	// BattleBudget is the wall-clock cap on one battle. When it expires
	// before the simulation resolves, the outcome is forced the same way
	// the frame cap forces it.
	BattleBudget time.Duration

	// SeedFn produces each cycle's battle seed. Defaults to the clock.
	SeedFn func() int64
}

// Server is the phase controller. All mutable cycle state sits behind mu;
// timers and the battle goroutine carry a generation token and go inert
// when the cycle has moved on without them.
type Server struct {
	log        slog.Logger
	db         arenadb.DB
	dispatcher paydispatch.Dispatcher
	sink       Sink

	wallets fightarena.WalletSet
	minBet  float64
	feeRate float64

	bettingDur   time.Duration
	countdownDur time.Duration
	payoutDur    time.Duration
	frameTick    time.Duration
	battleBudget time.Duration
	seedFn       func() int64

	mu        sync.RWMutex
	phase     fightarena.Phase
	cycle     uint64
	gen       uint64
	book      *wager.Book
	deadline  time.Time
	seed      int64
	sim       *fightsim.Simulator
	winner    fightarena.Side
	decidedBy string
	frames    int
	settled   bool
	closed    bool

	// lastSnap mirrors the battle goroutine's latest frame so state
	// snapshots never touch the simulator from another goroutine.
	lastSnap fightsim.Snapshot

	runCtx context.Context
	wg     sync.WaitGroup
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Log == nil {
		return nil, errors.New("log is nil")
	}
	if cfg.DB == nil {
		return nil, errors.New("db is nil")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is nil")
	}
	if cfg.Sink == nil {
		return nil, errors.New("sink is nil")
	}
	if cfg.Wallets.Ryu == "" || cfg.Wallets.Ken == "" {
		return nil, errors.New("fighter wallets not configured")
	}
	if cfg.HouseFeeRate < 0 || cfg.HouseFeeRate >= 1 {
		return nil, fmt.Errorf("house fee rate %v out of [0, 1)", cfg.HouseFeeRate)
	}

	s := &Server{
		log:          cfg.Log,
		db:           cfg.DB,
		dispatcher:   cfg.Dispatcher,
		sink:         cfg.Sink,
		wallets:      cfg.Wallets,
		minBet:       cfg.MinBet,
		feeRate:      cfg.HouseFeeRate,
		bettingDur:   cfg.BettingDuration,
		countdownDur: cfg.CountdownDuration,
		payoutDur:    cfg.PayoutDuration,
		frameTick:    cfg.FrameInterval,
		battleBudget: cfg.BattleBudget,
		seedFn:       cfg.SeedFn,
		book:         wager.NewBook(cfg.MinBet),
		phase:        fightarena.PhasePayout, // first enterBetting flips it
	}
	if s.bettingDur <= 0 {
		s.bettingDur = 3 * time.Minute
	}
	if s.countdownDur <= 0 {
		s.countdownDur = 30 * time.Second
	}
	if s.payoutDur <= 0 {
		s.payoutDur = 60 * time.Second
	}
	if s.battleBudget <= 0 {
		s.battleBudget = 2 * time.Minute
	}
	if s.seedFn == nil {
		s.seedFn = func() int64 { return time.Now().UnixNano() }
	}
	return s, nil
}

// Run starts the cycle and blocks until ctx is cancelled. It always
// returns ctx.Err().
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.enterBetting()

	<-ctx.Done()

	s.mu.Lock()
	s.closed = true
	s.gen++ // orphan every pending timer
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Infof("arena stopped after cycle %d", s.Cycle())
	return ctx.Err()
}

// Cycle returns the current cycle number.
func (s *Server) Cycle() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle
}

// Phase returns the current phase.
func (s *Server) Phase() fightarena.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// PlaceBet validates and admits a stake into the current cycle. The stake
// is validated before the sourceRef hits the durable deposit log, so a
// rejected bet does not burn its reference; a deposit replayed across
// restarts is still credited only once.
func (s *Server) PlaceBet(ctx context.Context, side fightarena.Side, amount float64, bettor, sourceRef string) (wager.Bet, error) {
	if err := s.book.Validate(side, amount); err != nil {
		return wager.Bet{}, err
	}

	if sourceRef != "" {
		if err := s.db.MarkDeposit(ctx, sourceRef); err != nil {
			if errors.Is(err, arenadb.ErrDuplicateEntry) {
				return wager.Bet{}, fmt.Errorf("%w: %s", wager.ErrDuplicateDeposit, sourceRef)
			}
			return wager.Bet{}, fmt.Errorf("record deposit: %w", err)
		}
	}

	bet, err := s.book.PlaceBet(s.Cycle(), side, amount, bettor, sourceRef)
	if err != nil {
		return wager.Bet{}, err
	}

	if err := s.db.StoreBet(ctx, bet); err != nil {
		s.log.Errorf("store bet for cycle %d: %v", bet.Cycle, err)
	}

	pools := s.book.Pools()
	s.emit(fightarena.EventBetAccepted, fightarena.BetAccepted{
		Cycle:     bet.Cycle,
		Side:      bet.Side,
		Amount:    bet.Amount,
		Bettor:    bet.Bettor,
		PoolTotal: pools[bet.Side].Total,
		PoolCount: pools[bet.Side].Count,
	})
	s.log.Infof("bet accepted: cycle=%d side=%s amount=%v bettor=%s",
		bet.Cycle, bet.Side, bet.Amount, bet.Bettor)
	return bet, nil
}

// ConsumeDeposits turns chain deposits into bets until ctx ends or the
// channel closes. Deposits to the house wallet or outside the betting
// window are logged and skipped.
func (s *Server) ConsumeDeposits(ctx context.Context, deposits <-chan fightarena.Deposit) {
	for {
		select {
		case <-ctx.Done():
			return
		case dep, ok := <-deposits:
			if !ok {
				return
			}
			side, ok := s.wallets.SideForAddress(dep.To)
			if !ok {
				s.log.Debugf("deposit %s to non-fighter wallet %s ignored", dep.SourceRef, dep.To)
				continue
			}
			if _, err := s.PlaceBet(ctx, side, dep.Amount, dep.From, dep.SourceRef); err != nil {
				s.log.Warnf("deposit %s not credited: %v", dep.SourceRef, err)
			}
		}
	}
}

// ReportOutcome lets an external battle runner claim the result for the
// in-progress battle. The seed must match the current battle and only the
// first decision for a cycle sticks; later reports and the simulation's own
// result are ignored.
func (s *Server) ReportOutcome(seed int64, winner fightarena.Side) error {
	if !winner.Valid() {
		return fmt.Errorf("%w: %q", wager.ErrInvalidSide, winner)
	}

	s.mu.Lock()
	if s.phase != fightarena.PhaseBattle {
		s.mu.Unlock()
		return fmt.Errorf("no battle in progress (phase %s)", s.phase)
	}
	if seed != s.seed {
		s.mu.Unlock()
		return fmt.Errorf("seed %d does not match the current battle", seed)
	}
	if s.winner != "" {
		s.mu.Unlock()
		return fmt.Errorf("outcome for cycle %d already decided", s.cycle)
	}
	s.winner = winner
	s.decidedBy = "reported"
	s.mu.Unlock()

	s.log.Infof("outcome reported for cycle %d: %s wins", s.Cycle(), winner)
	return nil
}

func (s *Server) emit(typ string, payload any) {
	s.sink.Broadcast(fightarena.Event{Type: typ, Payload: payload})
}

// afterGen schedules fn to run after d unless the cycle has moved to a new
// generation by then.
func (s *Server) afterGen(gen uint64, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		s.mu.RLock()
		stale := s.gen != gen || s.closed
		s.mu.RUnlock()
		if stale {
			return
		}
		fn()
	})
}
