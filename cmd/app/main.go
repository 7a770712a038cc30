// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/config"
	"trailroom-billing/internal/domain/ports/adapter"
	aiAdapters "trailroom-billing/internal/infra/adapters/ai"
	payAdapters "trailroom-billing/internal/infra/adapters/payment"
	hookAdapters "trailroom-billing/internal/infra/adapters/webhook"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/infra/api/apiv1"
	pg "trailroom-billing/internal/infra/db/postgres"
	"trailroom-billing/internal/infra/logging"
	"trailroom-billing/internal/infra/metrics"
	red "trailroom-billing/internal/infra/redis"
	"trailroom-billing/internal/infra/sched"
	"trailroom-billing/internal/infra/scheduler"
	"trailroom-billing/internal/infra/security"
	"trailroom-billing/internal/infra/worker"
	"trailroom-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

// devKeySecret signs simulated checkouts when no gateway is configured.
const devKeySecret = "noop_secret"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, noop gateway and generator when keys are missing")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	var cipher usecase.SecretCipher = security.PlainSecrets{}
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey, cfg.Security.RetiredKeys...)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		cipher = enc
	} else {
		logger.Warn().Msg("security.encryption_key not set; webhook secrets stored in plaintext (dev only)")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	accountRepo := pg.NewAccountRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	webhookRepo := pg.NewWebhookRepo(pool)
	deliveryRepo := pg.NewDeliveryRepo(pool)
	jobRepo := pg.NewTryOnJobRepo(pool)
	invoiceRepo := pg.NewInvoiceRepoCacheDecorator(pg.NewInvoiceRepo(pool), redisClient, cfg.Redis.TTL, logger)

	// ---- Background workers ----
	webhookPool := worker.NewPool(cfg.Credits.SweepWorkers, cfg.Webhook.RetryBatch, logger)
	webhookPool.Start(ctx)
	tryOnProc := worker.NewTryOnProcessor(cfg.TryOn.Workers, cfg.TryOn.QueueSize, logger)

	// ---- Adapters ----
	gateway := buildGateway(cfg, logger)
	generator := buildGenerator(ctx, cfg, logger)
	sender := hookAdapters.NewHTTPSender(cfg.Webhook.Timeout, cfg.Webhook.UserAgent)

	// ---- Use cases ----
	webhookUC := usecase.NewWebhookUseCase(webhookRepo, deliveryRepo, sender, cipher, webhookPool, tm, usecase.WebhookOptions{
		MaxAttempts: cfg.Webhook.MaxAttempts,
		Timeout:     cfg.Webhook.Timeout,
		ClaimLease:  cfg.Webhook.ClaimLease,
	}, logger)
	creditUC := usecase.NewCreditUseCase(accountRepo, ledgerRepo, tm, webhookUC, usecase.CreditOptions{
		FreeDaily:     cfg.Credits.FreeDaily,
		LowThreshold:  cfg.Credits.LowThreshold,
		MaxCASRetries: cfg.Credits.MaxCASRetries,
		SweepWorkers:  cfg.Credits.SweepWorkers,
	}, logger)
	pricingUC := usecase.NewPricingUseCase()
	invoiceUC := usecase.NewInvoiceUseCase(invoiceRepo, paymentRepo, accountRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, accountRepo, creditUC, pricingUC, gateway, tm, webhookUC, invoiceUC, usecase.PaymentOptions{
		KeySecret:     cfg.Payment.Razorpay.KeySecret,
		WebhookSecret: cfg.Payment.Razorpay.WebhookSecret,
		ExpireAfter:   cfg.Payment.ExpireAfter,
	}, logger)
	tryOnUC := usecase.NewTryOnUseCase(jobRepo, creditUC, generator, tryOnProc, webhookUC, usecase.TryOnOptions{
		CreditCost: cfg.TryOn.CreditCost,
	}, logger)

	go tryOnProc.Run(ctx, tryOnUC)

	// ---- Schedulers ----
	jobs := []struct {
		job      scheduler.Job
		interval time.Duration
		locked   bool
		timeout  time.Duration // zero means one interval
	}{
		{sched.NewWebhookRetrySweep(webhookUC, cfg.Webhook.RetryBatch, logger), cfg.Scheduler.WebhookRetryInterval, true,
			usecase.RetrySweepTimeout(cfg.Webhook.RetryBatch, cfg.Webhook.Timeout)},
		{sched.NewDailyCreditReset(creditUC, logger), cfg.Scheduler.DailyResetInterval, true, 0},
		{sched.NewPaymentReconciler(paymentUC, cfg.Payment.StaleAfter, 200, logger), cfg.Scheduler.ReconcileInterval, true, 0},
		// the try-on queue is per process, so the requeue is never locked
		{sched.NewTryOnRequeue(tryOnProc, tryOnUC, cfg.TryOn.RequeueAfter, logger), cfg.Scheduler.TryOnRequeueInterval, false, 0},
		{sched.NewPoolStats(pool, webhookPool, tryOnProc), cfg.Scheduler.PoolStatsInterval, false, 0},
	}
	schedulers := make([]*scheduler.Scheduler, 0, len(jobs))
	for _, j := range jobs {
		opt := scheduler.Options{Interval: j.interval, Timeout: j.timeout, RunAtStart: true}
		if j.locked {
			opt.Locker = locker
			opt.LockKey = red.SweepLockKey(j.job.Name())
		}
		s := scheduler.NewScheduler(j.job, opt, logger)
		s.Start(ctx)
		schedulers = append(schedulers, s)
	}

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, 24*time.Hour)
	router := api.NewRouter(cfg.HTTP.RequestTimeout, logger,
		api.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return pool.Ping(ctx) }},
		api.HealthCheck{Name: "redis", Check: redisClient.Ping},
	)
	srv := apiv1.NewServer(pricingUC, creditUC, paymentUC, invoiceUC, webhookUC, tryOnUC, logger)
	apiv1.RegisterAPIV1(router, srv, apiv1.Guards{
		Auth:       api.RequireAuth(auth, logger),
		Admin:      api.RequireRole(api.RoleAdmin),
		OrderLimit: api.RateLimit(rateLimiter, "payments_orders", cfg.Payment.OrderRateLimit, time.Minute, logger),
		TryOnLimit: api.RateLimit(rateLimiter, "tryon", cfg.TryOn.SubmitRateLimit, time.Minute, logger),
	})
	if cfg.Runtime.Dev {
		mountDevRoutes(router, gateway, cfg.Payment.Razorpay.KeySecret, logger)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	for _, s := range schedulers {
		s.Stop()
	}
	cancel()
	tryOnProc.Wait()
	webhookPool.Stop()
	logger.Info().Msg("bye")
}

func buildGateway(cfg *config.Config, logger *zerolog.Logger) adapter.PaymentGateway {
	rz := cfg.Payment.Razorpay
	if rz.KeyID == "" || rz.KeySecret == "" {
		// only reachable in dev; Validate requires keys otherwise
		logger.Warn().Msg("razorpay keys not set; using noop payment gateway")
		if rz.KeySecret == "" {
			cfg.Payment.Razorpay.KeySecret = devKeySecret
		}
		return payAdapters.NewNoopPaymentGateway()
	}
	gw, err := payAdapters.NewRazorpayGateway(rz.KeyID, rz.KeySecret, rz.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("razorpay gateway")
	}
	logger.Info().Str("key_id", logging.Redact(rz.KeyID, cfg.Runtime.Dev)).Msg("payment gateway: razorpay")
	return gw
}

// buildGenerator chains the primary model with its fallbacks and caps
// concurrent upstream calls.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.TryOnGenerator {
	t := cfg.TryOn
	if t.GeminiKey == "" {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("tryon.gemini_key is required")
		}
		logger.Warn().Msg("gemini key not set; using noop try-on generator")
		return aiAdapters.NewNoopGenerator(2*time.Second, logger)
	}

	models := append([]string{t.Model}, t.FallbackModels...)
	chain := make([]aiAdapters.NamedGenerator, 0, len(models))
	for _, m := range models {
		g, err := aiAdapters.NewGeminiGenerator(ctx, t.GeminiKey, t.GeminiURL, m)
		if err != nil {
			logger.Fatal().Err(err).Str("model", m).Msg("gemini generator")
		}
		chain = append(chain, aiAdapters.NamedGenerator{Name: m, Generator: g})
	}
	logger.Info().Strs("models", models).Msg("try-on generator: gemini")

	var gen adapter.TryOnGenerator = chain[0].Generator
	if len(chain) > 1 {
		gen = aiAdapters.NewFallbackGenerator(logger, chain...)
	}
	return aiAdapters.NewLimitedGenerator(gen, t.ConcurrentLimit)
}

// mountDevRoutes exposes a checkout simulator for the noop gateway. The
// response carries what the client would get back from a real checkout.
func mountDevRoutes(r chi.Router, gw adapter.PaymentGateway, keySecret string, logger *zerolog.Logger) {
	noop, ok := gw.(*payAdapters.NoopPaymentGateway)
	if !ok {
		return
	}
	r.Post("/dev/checkout/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		payID, err := noop.Capture(orderID, r.URL.Query().Get("method"))
		if err != nil {
			api.WriteError(w, r, logger, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"razorpay_order_id":   orderID,
			"razorpay_payment_id": payID,
			"razorpay_signature":  security.Sign(keySecret, security.OrderSignaturePayload(orderID, payID)),
		})
	})
}
