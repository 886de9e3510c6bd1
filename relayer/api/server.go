// Package api exposes the relayer's operator surface: health, metrics, a
// manual processing endpoint, and transaction history.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/metrics"
	"github.com/tonpay/burn-relayer/relayer/store"
)

// Relayer is the slice of the pipeline the API serves.
type Relayer interface {
	ProcessPayment(ctx context.Context, lt, hash, userAddress string, amount *big.Int) (*store.TransactionRecord, error)
	Ledger() *store.Ledger
	Tracker() *metrics.Tracker
}

// Server provides the operator HTTP endpoints.
type Server struct {
	relayer Relayer
	logger  zerolog.Logger
	server  *http.Server
}

// NewServer creates the operator API server.
func NewServer(relayer Relayer, port int, logger zerolog.Logger) *Server {
	s := &Server{
		relayer: relayer,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.setupRoutes(),
	}
	return s
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/process-subscription", s.handleProcessSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)

	return r
}

// Start binds the listen address and serves in the background. The bind is
// probed synchronously so a taken port fails startup instead of surfacing
// later in the logs.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("api server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		s.logger.Info().Str("addr", s.server.Addr).Msg("api server started")
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("api server startup timeout")
	}
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
