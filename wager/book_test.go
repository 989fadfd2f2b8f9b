package wager

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fightarena "github.com/arenabets/fightarena"
)

func TestBookLifecycle(t *testing.T) {
	b := NewBook(0.001)

	// Closed until opened.
	_, err := b.PlaceBet(1, fightarena.SideRyu, 1.0, "addr", "")
	assert.ErrorIs(t, err, ErrPhaseClosed)

	b.Open()
	bet, err := b.PlaceBet(1, fightarena.SideRyu, 1.0, "addr", "tx:0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bet.Cycle)
	assert.Equal(t, 1.0, bet.Amount)

	b.Close()
	_, err = b.PlaceBet(1, fightarena.SideKen, 1.0, "addr2", "")
	assert.ErrorIs(t, err, ErrPhaseClosed)

	// Pools stay readable after close.
	pools := b.Pools()
	assert.Equal(t, 1.0, pools[fightarena.SideRyu].Total)
	assert.Equal(t, 1, pools[fightarena.SideRyu].Count)
	assert.Zero(t, pools[fightarena.SideKen].Count)

	// Reopening clears the previous cycle.
	b.Open()
	assert.Zero(t, b.Pools().Total())
	_, err = b.PlaceBet(2, fightarena.SideRyu, 1.0, "addr", "tx:0")
	assert.NoError(t, err, "dedup set must reset with the cycle")
}

func TestBookValidation(t *testing.T) {
	b := NewBook(0.5)
	b.Open()

	_, err := b.PlaceBet(1, "BLANKA", 1.0, "addr", "")
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = b.PlaceBet(1, fightarena.SideRyu, 0, "addr", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = b.PlaceBet(1, fightarena.SideRyu, -2, "addr", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = b.PlaceBet(1, fightarena.SideRyu, 0.25, "addr", "")
	assert.ErrorIs(t, err, ErrInvalidAmount, "below minimum stake")

	_, err = b.PlaceBet(1, fightarena.SideRyu, 0.5, "addr", "")
	assert.NoError(t, err)
}

func TestBookDuplicateDeposit(t *testing.T) {
	b := NewBook(0)
	b.Open()

	_, err := b.PlaceBet(1, fightarena.SideKen, 1.0, "addr", "txid:1")
	require.NoError(t, err)

	_, err = b.PlaceBet(1, fightarena.SideKen, 1.0, "addr", "txid:1")
	assert.ErrorIs(t, err, ErrDuplicateDeposit)

	// A rejected duplicate must not affect the pool.
	assert.Equal(t, 1.0, b.Pools().Total())

	// Empty refs never collide.
	_, err = b.PlaceBet(1, fightarena.SideKen, 1.0, "addr", "")
	require.NoError(t, err)
	_, err = b.PlaceBet(1, fightarena.SideKen, 1.0, "addr", "")
	require.NoError(t, err)
}

func TestBookConcurrentBets(t *testing.T) {
	b := NewBook(0)
	b.Open()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := fightarena.SideRyu
			if i%2 == 1 {
				side = fightarena.SideKen
			}
			_, err := b.PlaceBet(1, side, 1.0, "addr", "")
			if err != nil && !errors.Is(err, ErrPhaseClosed) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	pools := b.Pools()
	assert.Equal(t, 25, pools[fightarena.SideRyu].Count)
	assert.Equal(t, 25, pools[fightarena.SideKen].Count)
	assert.Equal(t, 50.0, pools.Total())
}

func TestBookBetsForReturnsCopy(t *testing.T) {
	b := NewBook(0)
	b.Open()
	_, err := b.PlaceBet(1, fightarena.SideRyu, 2.0, "addr-a", "")
	require.NoError(t, err)

	bets := b.BetsFor(fightarena.SideRyu)
	require.Len(t, bets, 1)
	bets[0].Amount = 999

	assert.Equal(t, 2.0, b.BetsFor(fightarena.SideRyu)[0].Amount)
}
