// Package notify reports processing outcomes to the backend service over
// HTTP.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
)

// SwapResult is the payload posted to the backend after a payment reaches a
// terminal state.
type SwapResult struct {
	UserAddress  string `json:"userAddress"`
	Success      bool   `json:"success"`
	TxID         string `json:"txId"`
	JettonAmount string `json:"jettonAmount,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Webhook delivers swap results to the backend. Delivery is best-effort: a
// failed post is logged and dropped, never retried, because the ledger is
// the durable record and the backend reconciles from it.
type Webhook struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewWebhook creates a backend notifier. An empty baseURL disables delivery.
func NewWebhook(baseURL string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "webhook").Logger(),
	}
}

// Notify posts the result to the backend's swap-result endpoint.
func (w *Webhook) Notify(ctx context.Context, result *SwapResult) {
	if w.baseURL == "" {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to encode webhook payload")
		return
	}

	url := w.baseURL + "/api/relayer/swap-result"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		w.logger.Warn().Err(err).Str("tx_id", result.TxID).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn().
			Int("status", resp.StatusCode).
			Str("tx_id", result.TxID).
			Msg("backend rejected webhook")
		return
	}

	w.logger.Debug().Str("tx_id", result.TxID).Msg("webhook delivered")
}

// CheckHealth probes the backend's health endpoint.
func (w *Webhook) CheckHealth(ctx context.Context) error {
	if w.baseURL == "" {
		return errors.New(errors.ErrCodeConfig, "backend url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "build backend health request")
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return errors.WrapRelay(err, errors.ErrCodeRPC, "backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeRPC, fmt.Sprintf("backend health returned status %d", resp.StatusCode))
	}
	return nil
}
