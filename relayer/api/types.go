package api

import "time"

// ProcessRequest is the manual processing payload: a payment the backend
// observed out of band, identified the same way polling identifies it.
type ProcessRequest struct {
	Lt             string `json:"lt"`
	Hash           string `json:"hash"`
	UserAddress    string `json:"userAddress"`
	AmountNanotons string `json:"amountNanotons"`
}

// ProcessResponse reports the outcome of a manually submitted payment
// after the pipeline has run it to a terminal state.
type ProcessResponse struct {
	Success bool   `json:"success"`
	TxID    string `json:"txId"`
	Message string `json:"message,omitempty"`
}

// TransactionView is the history representation of a ledger record.
type TransactionView struct {
	ID             uint       `json:"id"`
	Lt             string     `json:"lt"`
	Hash           string     `json:"hash"`
	UserAddress    string     `json:"userAddress"`
	AmountNanotons string     `json:"amountNanotons"`
	JettonAmount   string     `json:"jettonAmount,omitempty"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
}

// TransactionsResponse wraps the history listing.
type TransactionsResponse struct {
	Transactions []TransactionView `json:"transactions"`
	Counts       map[string]int64  `json:"counts"`
}

// ErrorResponse carries a request failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
