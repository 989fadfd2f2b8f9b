// Package chainmonitor polls a dcrd node for deposits to the arena's
// betting wallets. Every matched output becomes a Deposit on the monitor's
// channel exactly once, keyed by txid:vout, with the sender resolved from
// the transaction's first input when possible.
package chainmonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v3"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/decred/dcrd/txscript/v4/stdaddr"
	"github.com/decred/slog"

	fightarena "github.com/arenabets/fightarena"
)

// ChainRPC is the subset of rpcclient.Client the monitor needs. A fake
// implementation stands in for a node in tests.
type ChainRPC interface {
	GetBestBlock(ctx context.Context) (*chainhash.Hash, int64, error)
	GetBlockHash(ctx context.Context, blockHeight int64) (*chainhash.Hash, error)
	GetBlockVerbose(ctx context.Context, blockHash *chainhash.Hash, verboseTx bool) (*chainjson.GetBlockVerboseResult, error)
	GetRawMempool(ctx context.Context, txType chainjson.GetRawMempoolTxTypeCmd) ([]*chainhash.Hash, error)
	GetRawTransactionVerbose(ctx context.Context, txHash *chainhash.Hash) (*chainjson.TxRawResult, error)
}

// Config tunes a Monitor. Zero-value fields get defaults from New.
type Config struct {
	Log    slog.Logger
	RPC    ChainRPC
	Params *chaincfg.Params

	// MinAmount filters dust; matched outputs below it are ignored
	// entirely and never marked seen.
	MinAmount float64

	// PollInterval is the tick period. Defaults to 5s.
	PollInterval time.Duration

	// ScanMempool also surfaces 0-conf deposits. They carry Height 0 and
	// are deduplicated against their later block confirmation.
	ScanMempool bool
}

// Monitor scans new blocks (and optionally the mempool) each tick and
// pushes matched deposits to a single consumer channel.
type Monitor struct {
	log      slog.Logger
	rpc      ChainRPC
	params   *chaincfg.Params
	minAmt   float64
	interval time.Duration
	mempool  bool

	mu          sync.RWMutex
	watched     map[string]struct{} // wallet address -> present
	seen        map[string]struct{} // txid:vout -> credited
	lastScanned int64

	deposits chan fightarena.Deposit
	quit     chan struct{}
}

func New(cfg Config) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		log:         cfg.Log,
		rpc:         cfg.RPC,
		params:      cfg.Params,
		minAmt:      cfg.MinAmount,
		interval:    interval,
		mempool:     cfg.ScanMempool,
		watched:     make(map[string]struct{}),
		seen:        make(map[string]struct{}),
		lastScanned: -1,
		deposits:    make(chan fightarena.Deposit, 64),
		quit:        make(chan struct{}),
	}
}

// Watch adds a wallet address to the scan set. The address must parse for
// the configured network.
func (m *Monitor) Watch(address string) error {
	if _, err := stdaddr.DecodeAddress(address, m.params); err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	m.mu.Lock()
	m.watched[address] = struct{}{}
	m.mu.Unlock()
	m.log.Infof("monitor: watching %s", address)
	return nil
}

// MarkSeen pre-loads already-credited output refs (txid:vout) so a restart
// does not re-emit deposits the arena already counted.
func (m *Monitor) MarkSeen(refs ...string) {
	m.mu.Lock()
	for _, r := range refs {
		m.seen[r] = struct{}{}
	}
	m.mu.Unlock()
}

// Deposits is the consumer channel. Sends block rather than drop: a missed
// deposit is money, not telemetry.
func (m *Monitor) Deposits() <-chan fightarena.Deposit {
	return m.deposits
}

func (m *Monitor) Stop() { close(m.quit) }

// Run polls until ctx is cancelled or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Infof("monitor: started")
	t := time.NewTicker(m.interval)
	defer t.Stop()
	defer m.log.Infof("monitor: stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		case <-t.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context) {
	_, tip, err := m.rpc.GetBestBlock(ctx)
	if err != nil {
		m.log.Debugf("monitor: GetBestBlock failed: %v", err)
		return
	}

	m.mu.RLock()
	nWatched := len(m.watched)
	m.mu.RUnlock()
	if nWatched == 0 {
		return
	}

	// New blocks since the last tick. On first run or a backwards tip
	// (reorg) only the current tip is scanned.
	if m.lastScanned == -1 || tip != m.lastScanned {
		start := m.lastScanned + 1
		if m.lastScanned == -1 || start < 0 || start > tip {
			start = tip
		}
		for height := start; height <= tip; height++ {
			hash, err := m.rpc.GetBlockHash(ctx, height)
			if err != nil {
				continue
			}
			block, err := m.rpc.GetBlockVerbose(ctx, hash, true)
			if err != nil || block == nil {
				continue
			}
			for i := range block.RawTx {
				m.scanTx(ctx, &block.RawTx[i], height)
			}
		}
		m.lastScanned = tip
	}

	if m.mempool {
		txids, err := m.rpc.GetRawMempool(ctx, chainjson.GRMAll)
		if err != nil {
			m.log.Debugf("monitor: GetRawMempool failed: %v", err)
			return
		}
		for _, th := range txids {
			tx, err := m.rpc.GetRawTransactionVerbose(ctx, th)
			if err != nil || tx == nil {
				continue
			}
			m.scanTx(ctx, tx, 0)
		}
	}
}

// scanTx matches a transaction's outputs against the watched wallets and
// emits a Deposit for each unseen match.
func (m *Monitor) scanTx(ctx context.Context, tx *chainjson.TxRawResult, height int64) {
	for _, vout := range tx.Vout {
		to := m.matchWatched(vout.ScriptPubKey.Addresses)
		if to == "" {
			continue
		}
		if vout.Value < m.minAmt {
			m.log.Debugf("monitor: ignoring dust %v to %s in %s", vout.Value, to, tx.Txid)
			continue
		}

		ref := fmt.Sprintf("%s:%d", tx.Txid, vout.N)
		m.mu.Lock()
		if _, dup := m.seen[ref]; dup {
			m.mu.Unlock()
			continue
		}
		m.seen[ref] = struct{}{}
		m.mu.Unlock()

		dep := fightarena.Deposit{
			To:        to,
			From:      m.resolveSender(ctx, tx),
			Amount:    vout.Value,
			SourceRef: ref,
			Height:    height,
			At:        time.Now(),
		}
		m.log.Infof("monitor: deposit %v to %s from %s (%s, height %d)",
			dep.Amount, dep.To, dep.From, dep.SourceRef, dep.Height)

		select {
		case m.deposits <- dep:
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		}
	}
}

func (m *Monitor) matchWatched(addrs []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range addrs {
		if _, ok := m.watched[a]; ok {
			return a
		}
	}
	return ""
}

// resolveSender looks up the first input's previous output and returns its
// address. Best effort: coinbase inputs or lookup failures yield "".
func (m *Monitor) resolveSender(ctx context.Context, tx *chainjson.TxRawResult) string {
	if len(tx.Vin) == 0 || tx.Vin[0].IsCoinBase() {
		return ""
	}
	vin := tx.Vin[0]

	var prevHash chainhash.Hash
	if err := chainhash.Decode(&prevHash, vin.Txid); err != nil {
		return ""
	}
	prev, err := m.rpc.GetRawTransactionVerbose(ctx, &prevHash)
	if err != nil || prev == nil {
		return ""
	}
	if int(vin.Vout) >= len(prev.Vout) {
		return ""
	}
	if addrs := prev.Vout[vin.Vout].ScriptPubKey.Addresses; len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}
