package core

import (
	"context"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/burn"
	"github.com/tonpay/burn-relayer/relayer/config"
	"github.com/tonpay/burn-relayer/relayer/db"
	"github.com/tonpay/burn-relayer/relayer/metrics"
	"github.com/tonpay/burn-relayer/relayer/notify"
	"github.com/tonpay/burn-relayer/relayer/ratelimit"
	"github.com/tonpay/burn-relayer/relayer/store"
	"github.com/tonpay/burn-relayer/relayer/swap"
	"github.com/tonpay/burn-relayer/relayer/ton"
	"github.com/tonpay/burn-relayer/relayer/wallet"
)

// Relayer assembles the full pipeline from configuration and runs it.
type Relayer struct {
	cfg       *config.Config
	database  *db.DB
	ledger    *store.Ledger
	signer    *wallet.Signer
	processor *Processor
	scheduler *Scheduler
	tracker   *metrics.Tracker
	webhook   *notify.Webhook
	logger    zerolog.Logger
}

// NewRelayer wires every component. The database is owned by the caller and
// stays open across the relayer's lifetime.
func NewRelayer(cfg *config.Config, database *db.DB, logger zerolog.Logger) *Relayer {
	limiter := ratelimit.New(time.Duration(cfg.MinSpacingMs)*time.Millisecond, cfg.MaxConcurrent)
	client := ton.NewHTTPClient(cfg.RPCEndpoint, cfg.RPCAPIKey, limiter, logger)

	ledger := store.NewLedger(database.Client(), logger)
	signer := wallet.NewSigner(
		client,
		cfg.WalletAddress, cfg.WalletKey,
		cfg.GasReserve(),
		cfg.SeqnoWaitAttempts, cfg.InitRetryAttempts,
		logger,
	)

	router := swap.NewPoolRouter(client, cfg.PoolAddress, cfg.RouterAddress, cfg.WalletAddress, cfg.SwapGas(), logger)
	swapper := swap.NewExecutor(
		router, signer, client,
		cfg.JettonMaster,
		swap.Limits{
			Min:          cfg.MinSwap(),
			Max:          cfg.MaxSwap(),
			PoolFraction: cfg.PoolFractionPercent,
			Slippage:     cfg.SlippagePercent,
			GasReserve:   cfg.GasReserve(),
		},
		time.Duration(cfg.ConfirmTimeoutSeconds)*time.Second,
		cfg.BalancePollAttempts,
		logger,
	)
	burner := burn.NewExecutor(client, signer, cfg.JettonMaster, cfg.BurnGas(), logger)
	refunder := NewRefundHandler(signer, cfg.SubscriptionContract, logger)
	webhook := notify.NewWebhook(cfg.BackendURL, time.Duration(cfg.WebhookTimeoutSeconds)*time.Second, logger)

	// The wallet is unhealthy once it cannot pay for roughly a hundred more
	// callback messages.
	minBalance := new(big.Int).Mul(cfg.GasReserve(), big.NewInt(100))
	tracker := metrics.NewTracker(
		prometheus.DefaultRegisterer,
		time.Duration(cfg.IdleThresholdSeconds)*time.Second,
		minBalance,
	)

	processor := NewProcessor(
		ledger, swapper, burner, refunder, webhook, signer, tracker,
		cfg.SubscriptionContract,
		cfg.GasReserve(), cfg.GasReserve(),
		logger,
	)
	ingestor := ton.NewIngestor(client, cfg.WalletAddress, logger)
	scheduler := NewScheduler(
		ingestor, ledger, processor, signer, tracker,
		time.Duration(cfg.PollIntervalSeconds)*time.Second,
		cfg.BatchLimit, cfg.MaxConcurrent,
		logger,
	)

	return &Relayer{
		cfg:       cfg,
		database:  database,
		ledger:    ledger,
		signer:    signer,
		processor: processor,
		scheduler: scheduler,
		tracker:   tracker,
		webhook:   webhook,
		logger:    logger.With().Str("component", "relayer").Logger(),
	}
}

// Start initializes the wallet and launches the polling loop.
func (r *Relayer) Start(ctx context.Context) error {
	if err := r.signer.EnsureInitialized(ctx); err != nil {
		return err
	}
	r.scheduler.Start(ctx)
	r.logger.Info().Msg("relayer started")
	return nil
}

// Stop drains the scheduler. The database is closed by the caller.
func (r *Relayer) Stop() {
	r.scheduler.Stop()
	r.logger.Info().Msg("relayer stopped")
}

// ProcessPayment is the operator-facing path: it records a payment the
// backend observed out of band and runs it through the same pipeline,
// returning once the record is terminal. The ledger's uniqueness check
// rejects payments already seen by polling, so a replayed request gets an
// error instead of a second spend.
func (r *Relayer) ProcessPayment(ctx context.Context, lt, hash, userAddress string, amount *big.Int) (*store.TransactionRecord, error) {
	record, err := r.ledger.CreatePending(lt, hash, userAddress, "", r.cfg.WalletAddress, amount)
	if err != nil {
		return nil, err
	}
	r.processor.Process(ctx, record)
	return record, nil
}

// Ledger exposes the transaction store for the operator API.
func (r *Relayer) Ledger() *store.Ledger { return r.ledger }

// Tracker exposes processing statistics for the health endpoint.
func (r *Relayer) Tracker() *metrics.Tracker { return r.tracker }

// Webhook exposes the backend notifier for health probing.
func (r *Relayer) Webhook() *notify.Webhook { return r.webhook }
