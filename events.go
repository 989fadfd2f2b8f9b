package fightarena

import "time"

// Event names broadcast to observers. Payloads are JSON-serializable; late
// joiners reconstruct state from a snapshot instead of replaying these.
const (
	EventPhaseStarted        = "phase-started"
	EventBetAccepted         = "bet-accepted"
	EventCountdownTick       = "countdown-tick"
	EventBattleFrame         = "battle-frame"
	EventBattleEnded         = "battle-ended"
	EventPayoutSent          = "payout-sent"
	EventPayoutBatchComplete = "payout-batch-complete"
	EventDispatchFailed      = "dispatch-failed"
	EventCurrentState        = "current-state"
	EventChatMessage         = "chat-message"
)

// Event is the envelope written to the broadcast sink.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// BettingStarted is the phase-started(BETTING) payload.
type BettingStarted struct {
	Phase        Phase     `json:"phase"`
	Cycle        uint64    `json:"cycle"`
	Deadline     time.Time `json:"deadline"`
	Wallets      WalletSet `json:"wallets"`
	MinBet       float64   `json:"minBet"`
	HouseFeeRate float64   `json:"houseFeeRate"`
}

// CountdownStarted is the phase-started(COUNTDOWN) payload; betting is
// closed and the pools it carries are final for the cycle.
type CountdownStarted struct {
	Phase      Phase  `json:"phase"`
	Cycle      uint64 `json:"cycle"`
	FinalPools Pools  `json:"finalPools"`
	StartingIn int    `json:"startingIn"`
}

// BattleStarted is the phase-started(BATTLE) payload. The seed fully
// determines the battle, so clients can replay it locally.
type BattleStarted struct {
	Phase Phase  `json:"phase"`
	Cycle uint64 `json:"cycle"`
	Seed  int64  `json:"seed"`
	Pools Pools  `json:"pools"`
}

// PayoutStarted is the phase-started(PAYOUT) payload.
type PayoutStarted struct {
	Phase  Phase  `json:"phase"`
	Cycle  uint64 `json:"cycle"`
	Winner Side   `json:"winner"`
	Pools  Pools  `json:"pools"`
}

// BetAccepted is emitted for every bet admitted into the active cycle.
type BetAccepted struct {
	Cycle     uint64  `json:"cycle"`
	Side      Side    `json:"side"`
	Amount    float64 `json:"amount"`
	Bettor    string  `json:"bettorAddress"`
	PoolTotal float64 `json:"poolTotal"`
	PoolCount int     `json:"poolCount"`
}

// CountdownTick is emitted once per second during COUNTDOWN.
type CountdownTick struct {
	Cycle            uint64 `json:"cycle"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

// BattleEnded announces the decided winner before payouts run.
type BattleEnded struct {
	Cycle     uint64 `json:"cycle"`
	Winner    Side   `json:"winner"`
	Frames    int    `json:"frames"`
	DecidedBy string `json:"decidedBy"`
	Pools     Pools  `json:"pools"`
}

// PayoutSent is emitted per successful dispatch.
type PayoutSent struct {
	Cycle   uint64  `json:"cycle"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Profit  float64 `json:"profit"`
	Ref     string  `json:"ref"`
}

// DispatchFailed is emitted when one payout's dispatch reports failure. The
// rest of the batch is unaffected.
type DispatchFailed struct {
	Cycle   uint64  `json:"cycle"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Detail  string  `json:"detail"`
}

// PayoutBatchComplete closes the payout batch for a cycle.
type PayoutBatchComplete struct {
	Cycle          uint64  `json:"cycle"`
	TotalPaid      float64 `json:"totalPaid"`
	RecipientCount int     `json:"recipientCount"`
	HouseCut       float64 `json:"houseCut"`
	FailedCount    int     `json:"failedCount"`
}

// ChatMessage relays viewer chat through the hub.
type ChatMessage struct {
	User    string    `json:"user"`
	Message string    `json:"message"`
	At      time.Time `json:"timestamp"`
}
