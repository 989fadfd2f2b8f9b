package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/decred/dcrd/dcrutil/v4"
)

var (
	datadir    = flag.String("datadir", "", "Directory for the database and logs")
	httpAddr   = flag.String("httpaddr", ":8080", "HTTP listen address for the API and websocket feed")
	debugLevel = flag.String("debuglevel", "info", "Logging level (trace, debug, info, warn, error)")
	network    = flag.String("network", "mainnet", "Chain network: mainnet, testnet or simnet")

	ryuWallet   = flag.String("ryuwallet", "", "Deposit address backing bets on RYU")
	kenWallet   = flag.String("kenwallet", "", "Deposit address backing bets on KEN")
	houseWallet = flag.String("housewallet", "", "Address that keeps the house cut")

	minBet   = flag.Float64("minbet", 0.001, "Minimum accepted stake")
	houseFee = flag.Float64("housefee", 0.05, "House fee rate taken from the losing pool")

	bettingDur   = flag.Duration("betting", 3*time.Minute, "Betting window duration")
	countdownDur = flag.Duration("countdown", 30*time.Second, "Countdown duration")
	payoutDur    = flag.Duration("payout", 60*time.Second, "Payout display duration")
	frameTick    = flag.Duration("frametick", time.Second/60, "Battle frame pacing")

	dcrdHost = flag.String("dcrdhost", "", "dcrd RPC host:port for deposit monitoring (optional)")
	dcrdCert = flag.String("dcrdcert", "", "Path to dcrd rpc.cert")
	dcrdUser = flag.String("dcrduser", "", "dcrd RPC user")
	dcrdPass = flag.String("dcrdpass", "", "dcrd RPC password")

	walletHost = flag.String("wallethost", "", "dcrwallet RPC host:port for live payouts (optional)")
	walletCert = flag.String("walletcert", "", "Path to dcrwallet rpc.cert")
	walletUser = flag.String("walletuser", "", "dcrwallet RPC user")
	walletPass = flag.String("walletpass", "", "dcrwallet RPC password")
)

type arenaConfig struct {
	DataDir    string
	HTTPAddr   string
	DebugLevel string
	Params     *chaincfg.Params

	RyuWallet   string
	KenWallet   string
	HouseWallet string

	MinBet   float64
	HouseFee float64

	BettingDuration   time.Duration
	CountdownDuration time.Duration
	PayoutDuration    time.Duration
	FrameInterval     time.Duration

	DcrdHost string
	DcrdCert string
	DcrdUser string
	DcrdPass string

	WalletHost string
	WalletCert string
	WalletUser string
	WalletPass string
}

// loadConfig validates the flags into a runnable configuration. Either RPC
// backend may be omitted; deposits then arrive only via the HTTP API and
// payouts are simulated.
func loadConfig() (*arenaConfig, error) {
	cfg := &arenaConfig{
		DataDir:           *datadir,
		HTTPAddr:          *httpAddr,
		DebugLevel:        *debugLevel,
		RyuWallet:         *ryuWallet,
		KenWallet:         *kenWallet,
		HouseWallet:       *houseWallet,
		MinBet:            *minBet,
		HouseFee:          *houseFee,
		BettingDuration:   *bettingDur,
		CountdownDuration: *countdownDur,
		PayoutDuration:    *payoutDur,
		FrameInterval:     *frameTick,
		DcrdHost:          *dcrdHost,
		DcrdCert:          *dcrdCert,
		DcrdUser:          *dcrdUser,
		DcrdPass:          *dcrdPass,
		WalletHost:        *walletHost,
		WalletCert:        *walletCert,
		WalletUser:        *walletUser,
		WalletPass:        *walletPass,
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dcrutil.AppDataDir("fightarena", false)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create datadir: %w", err)
	}

	switch *network {
	case "mainnet":
		cfg.Params = chaincfg.MainNetParams()
	case "testnet":
		cfg.Params = chaincfg.TestNet3Params()
	case "simnet":
		cfg.Params = chaincfg.SimNetParams()
	default:
		return nil, fmt.Errorf("unknown network %q", *network)
	}

	if cfg.RyuWallet == "" || cfg.KenWallet == "" {
		return nil, fmt.Errorf("both -ryuwallet and -kenwallet are required")
	}

	// Require all-or-nothing RPC settings, no partial fallbacks.
	if cfg.DcrdHost != "" || cfg.DcrdUser != "" || cfg.DcrdPass != "" || cfg.DcrdCert != "" {
		if cfg.DcrdHost == "" || cfg.DcrdUser == "" || cfg.DcrdPass == "" || cfg.DcrdCert == "" {
			return nil, fmt.Errorf("incomplete dcrd config: host=%q user=%q pass_set=%t cert=%q",
				cfg.DcrdHost, cfg.DcrdUser, cfg.DcrdPass != "", cfg.DcrdCert)
		}
	}
	if cfg.WalletHost != "" || cfg.WalletUser != "" || cfg.WalletPass != "" || cfg.WalletCert != "" {
		if cfg.WalletHost == "" || cfg.WalletUser == "" || cfg.WalletPass == "" || cfg.WalletCert == "" {
			return nil, fmt.Errorf("incomplete wallet config: host=%q user=%q pass_set=%t cert=%q",
				cfg.WalletHost, cfg.WalletUser, cfg.WalletPass != "", cfg.WalletCert)
		}
	}

	return cfg, nil
}
