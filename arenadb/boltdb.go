package arenadb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/wager"
)

var (
	betsBucket     = []byte("bets")
	depositsBucket = []byte("deposits")
	battlesBucket  = []byte("battles")
	payoutsBucket  = []byte("payouts")
	bettorsBucket  = []byte("bettors")
	metaBucket     = []byte("meta")

	statsKey = []byte("stats")
)

// BoltDB implements DB on a single bbolt file.
type BoltDB struct {
	db *bolt.DB
}

var _ DB = (*BoltDB)(nil)

// NewBoltDB opens (creating if needed) the database at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{betsBucket, depositsBucket, battlesBucket, payoutsBucket, bettorsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func cycleKey(cycle uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, cycle)
	return k
}

// loadStats reads the aggregate counters inside tx, returning zeroes when
// none exist yet.
func loadStats(tx *bolt.Tx) (*ArenaStats, error) {
	meta := tx.Bucket(metaBucket)
	if meta == nil {
		return nil, ErrMainBucketNotFound
	}
	stats := &ArenaStats{}
	if raw := meta.Get(statsKey); raw != nil {
		if err := json.Unmarshal(raw, stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return stats, nil
}

func saveStats(tx *bolt.Tx, stats *ArenaStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return tx.Bucket(metaBucket).Put(statsKey, raw)
}

func (b *BoltDB) StoreBet(ctx context.Context, bet wager.Bet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bets := tx.Bucket(betsBucket)
		if bets == nil {
			return ErrMainBucketNotFound
		}
		cycleBucket, err := bets.CreateBucketIfNotExists(cycleKey(bet.Cycle))
		if err != nil {
			return err
		}
		seq, err := cycleBucket.NextSequence()
		if err != nil {
			return err
		}
		raw, err := json.Marshal(bet)
		if err != nil {
			return err
		}
		if err := cycleBucket.Put(cycleKey(seq), raw); err != nil {
			return err
		}

		stats, err := loadStats(tx)
		if err != nil {
			return err
		}
		stats.TotalBets++
		stats.TotalWagered += bet.Amount
		if bet.Bettor != "" {
			bettors := tx.Bucket(bettorsBucket)
			if bettors == nil {
				return ErrMainBucketNotFound
			}
			key := []byte(bet.Bettor)
			if bettors.Get(key) == nil {
				if err := bettors.Put(key, []byte{1}); err != nil {
					return err
				}
				stats.TotalPlayers++
			}
		}
		return saveStats(tx, stats)
	})
}

func (b *BoltDB) MarkDeposit(ctx context.Context, sourceRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		deposits := tx.Bucket(depositsBucket)
		if deposits == nil {
			return ErrMainBucketNotFound
		}
		key := []byte(sourceRef)
		if deposits.Get(key) != nil {
			return ErrDuplicateEntry
		}
		at, err := time.Now().UTC().MarshalText()
		if err != nil {
			return err
		}
		return deposits.Put(key, at)
	})
}

// DepositRefs returns every credited reference in the deposit log.
func (b *BoltDB) DepositRefs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	err := b.db.View(func(tx *bolt.Tx) error {
		deposits := tx.Bucket(depositsBucket)
		if deposits == nil {
			return ErrMainBucketNotFound
		}
		return deposits.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (b *BoltDB) StoreBattle(ctx context.Context, rec *BattleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		battles := tx.Bucket(battlesBucket)
		if battles == nil {
			return ErrMainBucketNotFound
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := battles.Put(cycleKey(rec.Cycle), raw); err != nil {
			return err
		}

		stats, err := loadStats(tx)
		if err != nil {
			return err
		}
		stats.TotalBattles++
		stats.TotalHouseCut += rec.HouseCut
		stats.TotalPaidOut += rec.TotalPaid
		switch rec.Winner {
		case fightarena.SideRyu:
			stats.RyuWins++
		case fightarena.SideKen:
			stats.KenWins++
		}
		return saveStats(tx, stats)
	})
}

func (b *BoltDB) StorePayout(ctx context.Context, entry *PayoutEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		payouts := tx.Bucket(payoutsBucket)
		if payouts == nil {
			return ErrMainBucketNotFound
		}
		cycleBucket, err := payouts.CreateBucketIfNotExists(cycleKey(entry.Cycle))
		if err != nil {
			return err
		}
		seq, err := cycleBucket.NextSequence()
		if err != nil {
			return err
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return cycleBucket.Put(cycleKey(seq), raw)
	})
}

func (b *BoltDB) BetsForCycle(ctx context.Context, cycle uint64) ([]wager.Bet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []wager.Bet
	err := b.db.View(func(tx *bolt.Tx) error {
		bets := tx.Bucket(betsBucket)
		if bets == nil {
			return ErrMainBucketNotFound
		}
		cycleBucket := bets.Bucket(cycleKey(cycle))
		if cycleBucket == nil {
			return nil
		}
		return cycleBucket.ForEach(func(_, v []byte) error {
			var bet wager.Bet
			if err := json.Unmarshal(v, &bet); err != nil {
				return err
			}
			out = append(out, bet)
			return nil
		})
	})
	return out, err
}

func (b *BoltDB) BattleHistory(ctx context.Context, limit int) ([]BattleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []BattleRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		battles := tx.Bucket(battlesBucket)
		if battles == nil {
			return ErrMainBucketNotFound
		}
		c := battles.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec BattleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (b *BoltDB) PayoutsForCycle(ctx context.Context, cycle uint64) ([]PayoutEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []PayoutEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		payouts := tx.Bucket(payoutsBucket)
		if payouts == nil {
			return ErrMainBucketNotFound
		}
		cycleBucket := payouts.Bucket(cycleKey(cycle))
		if cycleBucket == nil {
			return nil
		}
		return cycleBucket.ForEach(func(_, v []byte) error {
			var entry PayoutEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	return out, err
}

// Stats returns lifetime aggregates. The 24h volume is recomputed from the
// stored bets on each call; the bet log stays small enough for that.
func (b *BoltDB) Stats(ctx context.Context) (*ArenaStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stats *ArenaStats
	cutoff := time.Now().Add(-24 * time.Hour)
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		stats, err = loadStats(tx)
		if err != nil {
			return err
		}

		bets := tx.Bucket(betsBucket)
		if bets == nil {
			return ErrMainBucketNotFound
		}
		return bets.ForEachBucket(func(k []byte) error {
			return bets.Bucket(k).ForEach(func(_, v []byte) error {
				var bet wager.Bet
				if err := json.Unmarshal(v, &bet); err != nil {
					return err
				}
				if bet.At.After(cutoff) {
					stats.Volume24h += bet.Amount
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if stats.TotalBattles > 0 {
		stats.RyuWinRate = float64(stats.RyuWins) / float64(stats.TotalBattles)
		stats.KenWinRate = float64(stats.KenWins) / float64(stats.TotalBattles)
	}
	return stats, nil
}
