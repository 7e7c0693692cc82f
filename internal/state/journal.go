// ./internal/state/journal.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/clvm/internal/types"
)

// Journal persists vault events to PostgreSQL. It implements
// types.EventSink; persistence failures are logged and never propagate
// back into the operation that raised the event.
type Journal struct{}

// NewJournal returns a journal writing through the global DB pool.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) DepositRecorded(e types.DepositEvent) {
	if DB == nil {
		return
	}
	query := `
		INSERT INTO vault_operations (op_id, op_type, account, shares, amount, fee, op_timestamp)
		VALUES ($1, 'deposit', $2, $3, $4, $5, $6);
	`
	_, err := DB.Exec(query,
		e.OpID, string(e.Account),
		e.Shares.String(), e.AmountAfterFee.String(), e.FeePaid.String(),
		e.Timestamp,
	)
	if err != nil {
		log.Error().Err(err).Str("op_id", e.OpID).Msg("Failed to journal deposit")
		return
	}
	log.Debug().Str("op_id", e.OpID).Msg("Deposit journaled")
}

func (j *Journal) WithdrawRecorded(e types.WithdrawEvent) {
	if DB == nil {
		return
	}
	payoutJSON, err := json.Marshal(e.Payout)
	if err != nil {
		log.Error().Err(err).Str("op_id", e.OpID).Msg("Failed to marshal withdrawal payout")
		return
	}
	query := `
		INSERT INTO vault_operations (op_id, op_type, account, shares, amount, payout, op_timestamp)
		VALUES ($1, 'withdraw', $2, $3, 0, $4, $5);
	`
	_, err = DB.Exec(query,
		e.OpID, string(e.Account), e.Shares.String(), payoutJSON, e.Timestamp,
	)
	if err != nil {
		log.Error().Err(err).Str("op_id", e.OpID).Msg("Failed to journal withdrawal")
		return
	}
	log.Debug().Str("op_id", e.OpID).Msg("Withdrawal journaled")
}

func (j *Journal) RewardsDistributed(e types.RewardsDistributedEvent) {
	if DB == nil {
		return
	}
	query := `
		INSERT INTO reward_distributions (op_id, total, exclusive_cut, receiver_cut, for_shareholders, distribution_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := DB.Exec(query,
		e.OpID,
		e.Total.String(), e.ExclusiveCut.String(), e.ReceiverCut.String(), e.ForShareholders.String(),
		e.Timestamp,
	)
	if err != nil {
		log.Error().Err(err).Str("op_id", e.OpID).Msg("Failed to journal distribution")
		return
	}
	log.Debug().Str("op_id", e.OpID).Msg("Distribution journaled")
}

func (j *Journal) RewardsCollected(e types.RewardsCollectedEvent) {
	if DB == nil {
		return
	}
	query := `
		INSERT INTO reward_collections (op_id, account, amount, collection_timestamp)
		VALUES ($1, $2, $3, $4);
	`
	_, err := DB.Exec(query, e.OpID, string(e.Account), e.Amount.String(), e.Timestamp)
	if err != nil {
		log.Error().Err(err).Str("op_id", e.OpID).Msg("Failed to journal collection")
		return
	}
	log.Debug().Str("op_id", e.OpID).Msg("Collection journaled")
}

// OperationRecord is one journaled vault operation as served by the API.
type OperationRecord struct {
	OpID      string          `json:"op_id"`
	OpType    string          `json:"op_type"`
	Account   string          `json:"account"`
	Shares    string          `json:"shares"`
	Amount    string          `json:"amount"`
	Fee       string          `json:"fee"`
	Payout    json.RawMessage `json:"payout,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// GetRecentOperations returns the newest journaled operations, most
// recent first.
func GetRecentOperations(limit int) ([]OperationRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT op_id, op_type, account, shares, amount, fee, payout, op_timestamp
		FROM vault_operations
		ORDER BY op_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		var r OperationRecord
		var payout []byte
		if err := rows.Scan(&r.OpID, &r.OpType, &r.Account, &r.Shares, &r.Amount, &r.Fee, &payout, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		if len(payout) > 0 {
			r.Payout = json.RawMessage(payout)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation rows: %w", err)
	}
	return records, nil
}

// DistributionRecord is one journaled revenue split.
type DistributionRecord struct {
	OpID            string    `json:"op_id"`
	Total           string    `json:"total"`
	ExclusiveCut    string    `json:"exclusive_cut"`
	ReceiverCut     string    `json:"receiver_cut"`
	ForShareholders string    `json:"for_shareholders"`
	Timestamp       time.Time `json:"timestamp"`
}

// GetRecentDistributions returns the newest reward splits, most recent
// first.
func GetRecentDistributions(limit int) ([]DistributionRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT op_id, total, exclusive_cut, receiver_cut, for_shareholders, distribution_timestamp
		FROM reward_distributions
		ORDER BY distribution_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var records []DistributionRecord
	for rows.Next() {
		var r DistributionRecord
		if err := rows.Scan(&r.OpID, &r.Total, &r.ExclusiveCut, &r.ReceiverCut, &r.ForShareholders, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distribution rows: %w", err)
	}
	return records, nil
}

// SaveVaultSnapshot records a point-in-time view of the vault for
// offline analysis.
func SaveVaultSnapshot(totalShares string, inPosition bool, positionID uint64, tickLower, tickUpper int32, idleBalances any) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	idleJSON, err := json.Marshal(idleBalances)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal idle balances: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (total_shares, in_position, position_id, tick_lower, tick_upper, idle_balances)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING snapshot_id;
	`
	var snapshotID int64
	err = DB.QueryRow(query, totalShares, inPosition, positionID, tickLower, tickUpper, idleJSON).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Info().Int64("snapshot_id", snapshotID).Msg("Vault snapshot saved to database")
	return snapshotID, nil
}
