// Package ton is the relayer's edge to the TON blockchain: an RPC client
// for the toncenter-style HTTP API, the binary codec for message bodies,
// and the ingestor that turns raw wallet history into candidate payments.
package ton

import (
	"context"
	"math/big"
)

// Client is the read/write surface of the chain RPC endpoint. The production
// implementation is HTTPClient; tests substitute fakes.
type Client interface {
	// Transactions returns the most recent transactions on the address,
	// newest first, as reported by the chain API.
	Transactions(ctx context.Context, address string, limit int) ([]APITransaction, error)

	// Balance returns the native-coin balance of the address in nanotons.
	Balance(ctx context.Context, address string) (*big.Int, error)

	// Seqno returns the wallet contract's current sequence counter.
	Seqno(ctx context.Context, address string) (uint32, error)

	// TokenWalletAddress resolves the owner's jetton wallet address under
	// the given master contract.
	TokenWalletAddress(ctx context.Context, owner, master string) (string, error)

	// TokenBalance returns the owner's jetton wallet balance in
	// nano-jetton units.
	TokenBalance(ctx context.Context, owner, master string) (*big.Int, error)

	// PoolReserves reads the two token reserves of a venue pool contract.
	PoolReserves(ctx context.Context, pool string) (*big.Int, *big.Int, error)

	// SendMessage submits a signed serialized external message.
	SendMessage(ctx context.Context, payload []byte) error
}

// APITransaction is one entry of the wallet's transaction history in the
// chain API's shape.
type APITransaction struct {
	TransactionID APITransactionID `json:"transaction_id"`
	InMsg         *APIMessage      `json:"in_msg"`
	Aborted       bool             `json:"aborted"`
	UTime         int64            `json:"utime"`
}

// APITransactionID identifies a transaction by the chain-assigned logical
// time and hash.
type APITransactionID struct {
	Lt   string `json:"lt"`
	Hash string `json:"hash"`
}

// APIMessage is the inbound message that produced the transaction.
type APIMessage struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
	BodyB64     string `json:"body,omitempty"`
}

// OutgoingMessage is a ready-to-send internal message descriptor: where to,
// how much native value to attach, and the encoded body.
type OutgoingMessage struct {
	Dest  string
	Value *big.Int
	Body  []byte
}

// CandidateTransaction is a parsed, filtered incoming payment as handed to
// the ledger for admission.
type CandidateTransaction struct {
	LogicalTime string
	Hash        string
	FromAddress string
	ToAddress   string
	Value       *big.Int
	UserAddress string
	Body        []byte
}
