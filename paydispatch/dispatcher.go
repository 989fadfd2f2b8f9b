// Package paydispatch sends payouts to winning bettors. Dispatch reports an
// outcome instead of returning an error: one recipient's failure is recorded
// and must never abort the rest of a payout batch.
package paydispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
	"github.com/google/uuid"
)

// Result is the terminal outcome of one dispatch attempt.
type Result struct {
	Success   bool
	Ref       string // transaction id or simulated reference
	ErrDetail string
}

// Dispatcher sends a single payout. Implementations must be safe for
// sequential reuse across batches.
type Dispatcher interface {
	Send(ctx context.Context, address string, amount float64) Result
}

// RawRequester is the wallet RPC surface the live dispatcher needs;
// *rpcclient.Client satisfies it.
type RawRequester interface {
	RawRequest(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error)
}

// RPCDispatcher pays through a dcrwallet sendtoaddress call.
type RPCDispatcher struct {
	log    slog.Logger
	wallet RawRequester
}

func NewRPCDispatcher(log slog.Logger, wallet RawRequester) *RPCDispatcher {
	return &RPCDispatcher{log: log, wallet: wallet}
}

func (d *RPCDispatcher) Send(ctx context.Context, address string, amount float64) Result {
	// Round to atom precision before it crosses the RPC boundary.
	amt, err := dcrutil.NewAmount(amount)
	if err != nil || amt <= 0 {
		return Result{ErrDetail: fmt.Sprintf("bad amount %v: %v", amount, err)}
	}

	addrParam, err := json.Marshal(address)
	if err != nil {
		return Result{ErrDetail: err.Error()}
	}
	amtParam, err := json.Marshal(amt.ToCoin())
	if err != nil {
		return Result{ErrDetail: err.Error()}
	}

	raw, err := d.wallet.RawRequest(ctx, "sendtoaddress", []json.RawMessage{addrParam, amtParam})
	if err != nil {
		d.log.Warnf("dispatch: sendtoaddress %s %v failed: %v", address, amt, err)
		return Result{ErrDetail: err.Error()}
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return Result{ErrDetail: fmt.Sprintf("decode sendtoaddress reply: %v", err)}
	}

	d.log.Infof("dispatch: sent %v to %s (%s)", amt, address, txid)
	return Result{Success: true, Ref: txid}
}

// SimDispatcher fakes payouts for exhibition runs without a funded wallet.
// Every send succeeds with a unique sim- reference.
type SimDispatcher struct {
	log slog.Logger
}

func NewSimDispatcher(log slog.Logger) *SimDispatcher {
	return &SimDispatcher{log: log}
}

func (d *SimDispatcher) Send(ctx context.Context, address string, amount float64) Result {
	ref := "sim-" + uuid.NewString()
	d.log.Infof("dispatch: simulated %v to %s (%s)", amount, address, ref)
	return Result{Success: true, Ref: ref}
}
