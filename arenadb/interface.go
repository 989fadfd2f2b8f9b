// Package arenadb persists the arena's durable history: accepted bets,
// credited deposits, finished battles and dispatched payouts. The hot
// per-cycle state lives in memory; this layer only records what must
// survive a restart.
package arenadb

import (
	"context"
	"errors"
	"time"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/wager"
)

var (
	ErrDuplicateEntry     = errors.New("entry already stored")
	ErrMainBucketNotFound = errors.New("main bucket not found")
	ErrBattleNotFound     = errors.New("battle not found")
)

// PayoutStatus marks how a dispatched payout ended.
type PayoutStatus string

const (
	PayoutSent   PayoutStatus = "sent"
	PayoutFailed PayoutStatus = "failed"
)

// BattleRecord is the durable summary of one finished cycle.
type BattleRecord struct {
	Cycle     uint64           `json:"cycle"`
	Seed      int64            `json:"seed"`
	Winner    fightarena.Side  `json:"winner"`
	Frames    int              `json:"frames"`
	DecidedBy string           `json:"decided_by"`
	Pools     fightarena.Pools `json:"pools"`
	HouseCut  float64          `json:"house_cut"`
	TotalPaid float64          `json:"total_paid"`
	EndedAt   time.Time        `json:"ended_at"`
}

// PayoutEntry records one dispatch attempt, successful or not.
type PayoutEntry struct {
	Cycle   uint64       `json:"cycle"`
	Address string       `json:"address"`
	Stake   float64      `json:"stake"`
	Amount  float64      `json:"amount"`
	Profit  float64      `json:"profit"`
	Status  PayoutStatus `json:"status"`
	Ref     string       `json:"ref"`
	Detail  string       `json:"detail,omitempty"`
	At      time.Time    `json:"at"`
}

// ArenaStats aggregates lifetime totals, per-fighter win counts, the number
// of distinct bettor addresses seen, and a rolling 24h wagered volume. The
// win rates are derived from the counters on each Stats call.
type ArenaStats struct {
	TotalBattles  int     `json:"total_battles"`
	TotalBets     int     `json:"total_bets"`
	TotalPlayers  int     `json:"total_players"`
	RyuWins       int     `json:"ryu_wins"`
	KenWins       int     `json:"ken_wins"`
	RyuWinRate    float64 `json:"ryu_win_rate"`
	KenWinRate    float64 `json:"ken_win_rate"`
	TotalWagered  float64 `json:"total_wagered"`
	TotalPaidOut  float64 `json:"total_paid_out"`
	TotalHouseCut float64 `json:"total_house_cut"`
	Volume24h     float64 `json:"volume_24h"`
}

type DB interface {
	// StoreBet appends an accepted bet to the cycle's durable log.
	StoreBet(ctx context.Context, bet wager.Bet) error

	// MarkDeposit records a deposit reference as credited. It returns
	// ErrDuplicateEntry if the reference was ever credited before, which
	// is what makes deposit crediting idempotent across restarts.
	MarkDeposit(ctx context.Context, sourceRef string) error

	// DepositRefs returns every credited deposit reference, for seeding
	// the chain monitor's dedup set on startup.
	DepositRefs(ctx context.Context) ([]string, error)

	StoreBattle(ctx context.Context, rec *BattleRecord) error
	StorePayout(ctx context.Context, entry *PayoutEntry) error

	// BetsForCycle returns the bets stored for one cycle in insertion
	// order.
	BetsForCycle(ctx context.Context, cycle uint64) ([]wager.Bet, error)

	// BattleHistory returns up to limit finished battles, newest first.
	BattleHistory(ctx context.Context, limit int) ([]BattleRecord, error)

	// PayoutsForCycle returns every dispatch attempt recorded for a cycle.
	PayoutsForCycle(ctx context.Context, cycle uint64) ([]PayoutEntry, error)

	Stats(ctx context.Context) (*ArenaStats, error)

	Close() error
}
