/*

Observable events raised by the vault core. Off-process bookkeeping (the
Postgres journal, the web API) consumes these through the EventSink
interface; the core never blocks on a sink.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// DepositEvent is raised after shares are minted for a deposit.
type DepositEvent struct {
	OpID           string      `json:"op_id"`
	Account        Account     `json:"account"`
	Shares         sdkmath.Int `json:"shares"`
	AmountAfterFee sdkmath.Int `json:"amount_after_fee"`
	FeePaid        sdkmath.Int `json:"fee_paid"`
	Timestamp      time.Time   `json:"timestamp"`
}

// WithdrawEvent is raised after a full-balance withdrawal settles.
type WithdrawEvent struct {
	OpID      string      `json:"op_id"`
	Account   Account     `json:"account"`
	Shares    sdkmath.Int `json:"shares"`
	Payout    sdk.Coins   `json:"payout"`
	Timestamp time.Time   `json:"timestamp"`
}

// RewardsDistributedEvent is raised after a one-shot revenue split.
type RewardsDistributedEvent struct {
	OpID            string      `json:"op_id"`
	Total           sdkmath.Int `json:"total"`
	ExclusiveCut    sdkmath.Int `json:"exclusive_cut"`
	ReceiverCut     sdkmath.Int `json:"receiver_cut"`
	ForShareholders sdkmath.Int `json:"for_shareholders"`
	Timestamp       time.Time   `json:"timestamp"`
}

// RewardsCollectedEvent is raised when an account drains its pending balance.
type RewardsCollectedEvent struct {
	OpID      string      `json:"op_id"`
	Account   Account     `json:"account"`
	Amount    sdkmath.Int `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventSink receives vault events. Implementations must not fail the
// operation that raised the event; persistence errors are theirs to log.
type EventSink interface {
	DepositRecorded(e DepositEvent)
	WithdrawRecorded(e WithdrawEvent)
	RewardsDistributed(e RewardsDistributedEvent)
	RewardsCollected(e RewardsCollectedEvent)
}

// NopSink discards every event. Useful as a default when no journal is
// configured.
type NopSink struct{}

func (NopSink) DepositRecorded(DepositEvent)               {}
func (NopSink) WithdrawRecorded(WithdrawEvent)             {}
func (NopSink) RewardsDistributed(RewardsDistributedEvent) {}
func (NopSink) RewardsCollected(RewardsCollectedEvent)     {}
