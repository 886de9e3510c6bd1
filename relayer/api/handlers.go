package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/tonpay/burn-relayer/relayer/store"
)

// handleHealth handles GET /health. An unhealthy verdict answers 503 so
// orchestrators restart or alert on the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.relayer.Tracker().Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if !snapshot.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(snapshot)
}

// handleProcessSubscription handles POST /api/v1/process-subscription.
func (s *Server) handleProcessSubscription(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Lt == "" || req.Hash == "" || req.UserAddress == "" {
		writeError(w, http.StatusBadRequest, "lt, hash, and userAddress are required")
		return
	}
	amount, ok := new(big.Int).SetString(req.AmountNanotons, 10)
	if !ok || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "amountNanotons must be a positive decimal string")
		return
	}

	record, err := s.relayer.ProcessPayment(r.Context(), req.Lt, req.Hash, req.UserAddress, amount)
	if err != nil {
		s.logger.Warn().Err(err).Str("lt", req.Lt).Msg("manual processing rejected")
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProcessResponse{
		Success: record.Status == store.StatusCompleted,
		TxID:    record.Hash,
		Message: record.ErrorMessage,
	})
}

// handleTransactions handles GET /api/v1/transactions?limit=<n>.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := s.relayer.Ledger().Recent(limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query transactions")
		writeError(w, http.StatusInternalServerError, "failed to query transactions")
		return
	}
	counts, err := s.relayer.Ledger().CountByStatus()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count transactions")
		writeError(w, http.StatusInternalServerError, "failed to count transactions")
		return
	}

	views := make([]TransactionView, 0, len(records))
	for _, rec := range records {
		views = append(views, TransactionView{
			ID:             rec.ID,
			Lt:             rec.Lt,
			Hash:           rec.Hash,
			UserAddress:    rec.UserAddress,
			AmountNanotons: rec.AmountNanotons,
			JettonAmount:   rec.JettonAmount,
			Status:         rec.Status,
			Error:          rec.ErrorMessage,
			CreatedAt:      rec.CreatedAt,
			ProcessedAt:    rec.ProcessedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransactionsResponse{Transactions: views, Counts: counts})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
