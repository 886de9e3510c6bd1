// Package store contains the GORM-backed ledger of incoming payments and
// the state machine rules that govern their lifecycle.
package store

import (
	"math/big"
	"time"

	"gorm.io/gorm"
)

// Transaction statuses. A record only ever moves forward:
// pending -> processing -> completed | failed | refunded.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

// statusRank orders statuses along the state machine. Terminal states share
// the highest rank so no terminal-to-terminal move is ever forward.
var statusRank = map[string]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
	StatusRefunded:   2,
}

// IsTerminal reports whether a status ends the record's lifecycle.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusRefunded
}

// TransactionRecord is the unit of work: one incoming payment observed on
// the relayer wallet. (Lt, Hash) is the chain-unique identity and the
// deduplication key. Records are never deleted; the table is the audit
// trail.
type TransactionRecord struct {
	gorm.Model
	Lt          string `gorm:"uniqueIndex:idx_lt_hash;not null"` // chain logical time
	Hash        string `gorm:"uniqueIndex:idx_lt_hash;not null"` // transaction hash
	UserAddress string `gorm:"index"`                            // payer the outcome is attributed to
	FromAddress string
	ToAddress   string

	// Amounts are decimal strings: nano-jetton units overflow int64 and
	// sqlite has no unsigned 64-bit column.
	AmountNanotons string
	JettonAmount   string

	Status       string `gorm:"index"`
	ErrorMessage string `gorm:"type:text"`
	RetryCount   int
	ProcessedAt  *time.Time
}

// TableName keeps the original ledger table name.
func (TransactionRecord) TableName() string {
	return "relayer_transactions"
}

// Amount returns the received value as a big integer. A malformed column
// yields zero; the ledger only writes values produced by big.Int.String.
func (r *TransactionRecord) Amount() *big.Int {
	return parseAmount(r.AmountNanotons)
}

// Jettons returns the acquired token amount as a big integer.
func (r *TransactionRecord) Jettons() *big.Int {
	return parseAmount(r.JettonAmount)
}

func parseAmount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
