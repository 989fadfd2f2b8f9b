// arenad runs the fight arena: a perpetual cycle of betting, countdown,
// simulated battle and pari-mutuel payout, exposed over HTTP and a
// websocket event feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/decred/dcrd/rpcclient/v8"
	"github.com/vctt94/bisonbotkit/logging"
	"golang.org/x/sync/errgroup"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/arenadb"
	"github.com/arenabets/fightarena/chainmonitor"
	"github.com/arenabets/fightarena/paydispatch"
	"github.com/arenabets/fightarena/server"
)

func main() {
	flag.Parse()
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "arenad: %v\n", err)
		os.Exit(1)
	}
}

func newRPCClient(host, user, pass, certPath string) (*rpcclient.Client, error) {
	cert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read rpc cert %s: %w", certPath, err)
	}
	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		Endpoint:     "ws",
		Certificates: cert,
	}, nil)
}

func realMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(cfg.DataDir, "logs", "arenad.log"),
		DebugLevel:     cfg.DebugLevel,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logBackend.Logger("ARND")

	db, err := arenadb.NewBoltDB(filepath.Join(cfg.DataDir, "arena.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live payouts need a wallet; without one the arena simulates them.
	var dispatcher paydispatch.Dispatcher
	if cfg.WalletHost != "" {
		wallet, err := newRPCClient(cfg.WalletHost, cfg.WalletUser, cfg.WalletPass, cfg.WalletCert)
		if err != nil {
			return fmt.Errorf("connect dcrwallet: %w", err)
		}
		defer wallet.Shutdown()
		dispatcher = paydispatch.NewRPCDispatcher(logBackend.Logger("PAYD"), wallet)
		log.Infof("payouts via dcrwallet at %s", cfg.WalletHost)
	} else {
		dispatcher = paydispatch.NewSimDispatcher(logBackend.Logger("PAYD"))
		log.Warnf("no wallet configured, payouts are simulated")
	}

	// The hub needs the server's snapshot and the server needs the hub as
	// its sink; the closure breaks the loop.
	var srv *server.Server
	hub := server.NewHub(logBackend.Logger("HUB"), func() server.StateSnapshot {
		return srv.StateSnapshot()
	})

	srv, err = server.NewServer(server.Config{
		Log:        logBackend.Logger("SRVR"),
		DB:         db,
		Dispatcher: dispatcher,
		Sink:       hub,
		Wallets: fightarena.WalletSet{
			Ryu:   cfg.RyuWallet,
			Ken:   cfg.KenWallet,
			House: cfg.HouseWallet,
		},
		MinBet:            cfg.MinBet,
		HouseFeeRate:      cfg.HouseFee,
		BettingDuration:   cfg.BettingDuration,
		CountdownDuration: cfg.CountdownDuration,
		PayoutDuration:    cfg.PayoutDuration,
		FrameInterval:     cfg.FrameInterval,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Deposit monitoring is optional; without dcrd, bets arrive over HTTP
	// only.
	if cfg.DcrdHost != "" {
		dcrd, err := newRPCClient(cfg.DcrdHost, cfg.DcrdUser, cfg.DcrdPass, cfg.DcrdCert)
		if err != nil {
			return fmt.Errorf("connect dcrd: %w", err)
		}
		defer dcrd.Shutdown()

		monitor := chainmonitor.New(chainmonitor.Config{
			Log:         logBackend.Logger("WTCH"),
			RPC:         dcrd,
			Params:      cfg.Params,
			MinAmount:   cfg.MinBet,
			ScanMempool: true,
		})
		for _, addr := range []string{cfg.RyuWallet, cfg.KenWallet} {
			if err := monitor.Watch(addr); err != nil {
				return err
			}
		}

		// Seed the dedup set with everything already credited so a
		// restart does not replay historical deposits.
		refs, err := db.DepositRefs(ctx)
		if err != nil {
			return fmt.Errorf("load credited deposits: %w", err)
		}
		monitor.MarkSeen(refs...)

		g.Go(func() error {
			monitor.Run(gctx)
			return nil
		})
		g.Go(func() error {
			srv.ConsumeDeposits(gctx, monitor.Deposits())
			return nil
		})
		log.Infof("deposit monitor polling dcrd at %s", cfg.DcrdHost)
	} else {
		log.Warnf("no dcrd configured, deposits accepted over HTTP only")
	}

	api := server.NewAPI(logBackend.Logger("HTTP"), srv, db, hub)
	httpSrv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     api.Router(),
		ReadTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := srv.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	log.Infof("arena running on %s network", cfg.Params.Name)
	return g.Wait()
}
