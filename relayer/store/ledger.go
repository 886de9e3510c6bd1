package store

import (
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// Ledger provides deduplicated admission and durable state transitions for
// transaction records. Its uniqueness constraint on (lt, hash) is the only
// cross-process synchronization the pipeline needs: however many poll
// cycles observe the same on-chain transaction, at most one record is ever
// created for it.
type Ledger struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewLedger creates a ledger on top of an opened database.
func NewLedger(db *gorm.DB, logger zerolog.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// TryCreate atomically admits a candidate. If (lt, hash) has been seen
// before, in any status, nothing is inserted and created is false. A
// fresh record starts in StatusProcessing, claimed by the current run.
func (l *Ledger) TryCreate(candidate ton.CandidateTransaction) (*TransactionRecord, bool, error) {
	record := &TransactionRecord{
		Lt:             candidate.LogicalTime,
		Hash:           candidate.Hash,
		UserAddress:    candidate.UserAddress,
		FromAddress:    candidate.FromAddress,
		ToAddress:      candidate.ToAddress,
		AmountNanotons: candidate.Value.String(),
		Status:         StatusProcessing,
	}

	result := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return nil, false, errors.WrapRelay(result.Error, errors.ErrCodeDatabase, "admit candidate")
	}
	if result.RowsAffected == 0 {
		l.logger.Debug().
			Str("lt", candidate.LogicalTime).
			Str("hash", candidate.Hash).
			Msg("candidate already admitted, skipping")
		return nil, false, nil
	}

	l.logger.Info().
		Str("lt", candidate.LogicalTime).
		Str("user", candidate.UserAddress).
		Str("amount", candidate.Value.String()).
		Msg("admitted new transaction")
	return record, true, nil
}

// CreatePending inserts a record for the operator-facing processing path.
// The same uniqueness constraint applies, so replays of a known payment are
// rejected rather than reprocessed.
func (l *Ledger) CreatePending(lt, hash, userAddress, fromAddress, toAddress string, amount *big.Int) (*TransactionRecord, error) {
	record := &TransactionRecord{
		Lt:             lt,
		Hash:           hash,
		UserAddress:    userAddress,
		FromAddress:    fromAddress,
		ToAddress:      toAddress,
		AmountNanotons: amount.String(),
		Status:         StatusPending,
	}

	result := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return nil, errors.WrapRelay(result.Error, errors.ErrCodeDatabase, "create pending record")
	}
	if result.RowsAffected == 0 {
		return nil, errors.Newf(errors.ErrCodeDatabase, "payment %s/%s already recorded", lt, hash)
	}
	return record, nil
}

// Transition advances a record to the given status. Moves that would go
// backward, or out of a terminal state, are rejected.
func (l *Ledger) Transition(record *TransactionRecord, status, errorMessage string) error {
	if IsTerminal(record.Status) {
		return errors.Newf(errors.ErrCodeDatabase,
			"record %d is terminal (%s), refusing transition to %s", record.ID, record.Status, status)
	}
	from, ok := statusRank[record.Status]
	to, okTo := statusRank[status]
	if !ok || !okTo || to <= from {
		return errors.Newf(errors.ErrCodeDatabase,
			"invalid transition %s -> %s for record %d", record.Status, status, record.ID)
	}

	now := time.Now()
	record.Status = status
	record.ErrorMessage = errorMessage
	record.ProcessedAt = &now

	if err := l.db.Save(record).Error; err != nil {
		return errors.WrapRelay(err, errors.ErrCodeDatabase, "persist transition")
	}

	l.logger.Info().
		Uint("record", record.ID).
		Str("status", status).
		Str("error", errorMessage).
		Msg("transitioned transaction")
	return nil
}

// SetJettonAmount records the realized swap output on the record.
func (l *Ledger) SetJettonAmount(record *TransactionRecord, amount *big.Int) error {
	record.JettonAmount = amount.String()
	if err := l.db.Save(record).Error; err != nil {
		return errors.WrapRelay(err, errors.ErrCodeDatabase, "persist jetton amount")
	}
	return nil
}

// MarkRetry increments the retry counter. Called only on the crash or
// unexpected-exception path, never on expected business failures.
func (l *Ledger) MarkRetry(record *TransactionRecord) error {
	record.RetryCount++
	if err := l.db.Save(record).Error; err != nil {
		return errors.WrapRelay(err, errors.ErrCodeDatabase, "persist retry count")
	}
	return nil
}

// Recent returns the newest records, for the operator history endpoint.
func (l *Ledger) Recent(limit int) ([]TransactionRecord, error) {
	var records []TransactionRecord
	err := l.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeDatabase, "query recent records")
	}
	return records, nil
}

// CountByStatus returns record counts grouped by status.
func (l *Ledger) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := l.db.Model(&TransactionRecord{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeDatabase, "count by status")
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
