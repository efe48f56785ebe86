package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/adapters"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/aggregator"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/api"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/config"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/feed"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/gasref"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/quote"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/simulation"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

// Runner is the service runner
// Responsible for wiring and starting all components
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   *aggregator.Service
	server    *http.Server
	publisher *feed.Publisher
	rdb       *redis.Client
	eth       *ethclient.Client
}

// New creates a service runner
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	r := &Runner{
		cfg:    cfg,
		logger: logger,
	}

	// 1. Token catalog, optionally shared through redis
	var store token.Store
	if cfg.Redis.Addr != "" {
		r.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
		})
		store = token.NewRedisStore(r.rdb, cfg.Redis.Key)
		logger.Info("Token store enabled", "redis", cfg.Redis.Addr, "key", cfg.Redis.Key)
	}
	catalog := token.NewCatalog(token.CatalogConfig{
		ListURL:    cfg.Tokens.ListURL,
		ChainID:    cfg.Tokens.ChainID,
		TTL:        cfg.Tokens.TTL,
		Timeout:    cfg.Tokens.Timeout,
		FailureTTL: cfg.Tokens.FailureTTL,
	}, store, logger)

	// 2. Gas reference
	gas, err := r.gasSource(ctx)
	if err != nil {
		r.close()
		return nil, err
	}

	// 3. Simulator; a nil client must stay a nil interface
	var simulator quote.Simulator
	if c := simulation.New(simulation.Config{
		URL:     cfg.Simulation.URL,
		APIKey:  cfg.Simulation.APIKey,
		Timeout: cfg.Simulation.Timeout,
	}, logger); c != nil {
		simulator = c
		logger.Info("Simulation enabled", "url", cfg.Simulation.URL)
	}

	// 4. Upstream sources
	sources := make([]adapters.Config, len(cfg.Sources))
	for i, s := range cfg.Sources {
		sources[i] = adapters.Config{
			Name:         s.Name,
			Kind:         s.Kind,
			BaseURL:      s.BaseURL,
			APIKey:       s.APIKey,
			ChainID:      s.ChainID,
			Taker:        cfg.Aggregator.TakerAddress,
			SlippageBps:  cfg.Aggregator.SlippageBps,
			Timeout:      s.Timeout,
			Params:       s.Params,
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
		}
	}
	list, err := adapters.Build(sources, simulator, logger)
	if err != nil {
		r.close()
		return nil, fmt.Errorf("failed to build sources: %w", err)
	}

	// 5. Aggregation service
	r.service, err = aggregator.NewService(list, catalog, gas, cfg.Aggregator.Timeout, logger)
	if err != nil {
		r.close()
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	// 6. Result feed
	if cfg.Feed.Enabled {
		client := feed.NewClient(feed.Config{
			URL:                  cfg.Feed.URL,
			Token:                cfg.Feed.Token,
			ReconnectInterval:    cfg.Feed.ReconnectInterval,
			MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
			HeartbeatInterval:    cfg.Feed.HeartbeatInterval,
			ReadTimeout:          cfg.Feed.ReadTimeout,
			WriteTimeout:         cfg.Feed.WriteTimeout,
		}, logger)
		r.publisher = feed.NewPublisher(client, cfg.Feed.QueueSize, logger)
		r.service.SetPublisher(r.publisher)
	}

	// 7. HTTP server
	r.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(r.service, logger).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return r, nil
}

func (r *Runner) gasSource(ctx context.Context) (aggregator.GasSource, error) {
	gc := r.cfg.GasReference
	if gc.Mode == config.GasModeFixed {
		fixed, err := gasref.NewFixed(gc.FixedX96)
		if err != nil {
			return nil, fmt.Errorf("failed to create gas reference: %w", err)
		}
		r.logger.Info("Gas reference initialized (fixed)", "x96", gc.FixedX96)
		return fixed, nil
	}

	contract, err := address("gasReference.contract", gc.Contract)
	if err != nil {
		return nil, err
	}
	wrapped, err := address("gasReference.wrappedNative", gc.WrappedNative)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, gc.DialTimeout)
	defer cancel()
	oracle, ec, err := gasref.Dial(dialCtx, gc.RPCURL, contract, wrapped, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gas reference: %w", err)
	}
	r.eth = ec
	r.logger.Info("Gas reference initialized (oracle)", "contract", contract.Hex(), "wrappedNative", wrapped.Hex())
	return oracle, nil
}

func address(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not a valid address", field, value)
	}
	return common.HexToAddress(value), nil
}

// Handler returns the HTTP handler
func (r *Runner) Handler() http.Handler {
	return r.server.Handler
}

// Run runs the service
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting swap quote aggregator",
		"app", r.cfg.App.Name,
		"addr", r.cfg.Server.Addr,
		"sources", r.service.Adapters())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listen for system signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if r.publisher != nil {
		if err := r.publisher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start feed: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	r.logger.Info("Swap quote aggregator started")

	var runErr error
	select {
	case sig := <-sigCh:
		r.logger.Info("Received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		r.logger.Info("Context cancelled, shutting down")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	if err := r.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully shuts down the service
func (r *Runner) Shutdown() error {
	r.logger.Info("Shutting down swap quote aggregator...")

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Server.ShutdownTimeout)
	defer cancel()

	var err error
	if r.server != nil {
		if err = r.server.Shutdown(ctx); err != nil {
			r.logger.Error("Failed to stop HTTP server", "error", err)
		}
	}
	if r.publisher != nil {
		r.publisher.Stop()
	}
	r.close()

	r.logger.Info("Swap quote aggregator stopped")
	return err
}

func (r *Runner) close() {
	if r.rdb != nil {
		if err := r.rdb.Close(); err != nil {
			r.logger.Error("Failed to close redis", "error", err)
		}
		r.rdb = nil
	}
	if r.eth != nil {
		r.eth.Close()
		r.eth = nil
	}
}
