package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	approvalhandler "riskgate/internal/approval/handler"
	approvalmetrics "riskgate/internal/approval/metrics"
	approvalservice "riskgate/internal/approval/service"
	"riskgate/internal/audit"
	"riskgate/internal/challenge"
	"riskgate/internal/gate"
	jwttoken "riskgate/internal/jwt_token"
	"riskgate/internal/notify"
	payoutmetrics "riskgate/internal/payout/metrics"
	payoutservice "riskgate/internal/payout/service"
	"riskgate/internal/platform/config"
	"riskgate/internal/platform/httpserver"
	"riskgate/internal/platform/kafka"
	"riskgate/internal/platform/logger"
	"riskgate/internal/platform/metrics"
	"riskgate/internal/platform/postgres"
	platformredis "riskgate/internal/platform/redis"
	rlhandler "riskgate/internal/ratelimit/handler"
	rlmetrics "riskgate/internal/ratelimit/metrics"
	rlmiddleware "riskgate/internal/ratelimit/middleware"
	rlmodels "riskgate/internal/ratelimit/models"
	rlservice "riskgate/internal/ratelimit/service"
	riskhandler "riskgate/internal/risk/handler"
	riskmetrics "riskgate/internal/risk/metrics"
	"riskgate/internal/risk/models"
	riskservice "riskgate/internal/risk/service"
	"riskgate/internal/signals"
	"riskgate/internal/signals/behavioral"
	"riskgate/internal/signals/bot"
	"riskgate/internal/signals/ipreputation"
	"riskgate/internal/signals/trust"
	"riskgate/internal/signals/velocity"
	"riskgate/internal/spam"
	httptransport "riskgate/internal/transport/http"
	"riskgate/pkg/platform/audit/publishers/security"
	"riskgate/pkg/platform/circuit"
)

const (
	topicPartitions  = 3
	topicReplication = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("riskgate stopped", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := metrics.New()
	checks := map[string]httptransport.Check{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if cfg.Postgres.MigrateOnStart {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
		checks["postgres"] = db.PingContext
		log.Info("using postgres record store")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	rdb := redisClient.Universal()
	if rdb != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		log.Info("using redis for counters and caches")
	}

	var (
		approvalSink notify.Sink     = notify.LogSink{Logger: log}
		securitySink security.Sink   = security.LogSink{Logger: log}
		producer     *kafka.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID}, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if cfg.Kafka.EnsureTopics {
			if err := producer.EnsureTopics(ctx, topicPartitions, topicReplication, cfg.Kafka.ApprovalsTopic, cfg.Kafka.SecurityTopic); err != nil {
				return err
			}
		}
		approvalSink = notify.NewKafkaSink(producer, cfg.Kafka.ApprovalsTopic)
		securitySink = notify.NewSecuritySink(producer, cfg.Kafka.SecurityTopic)
		checks["kafka"] = producer.Ping
		log.Info("publishing notifications to kafka", "brokers", cfg.Kafka.Brokers)
	}

	publisher := security.New(securitySink, security.WithLogger(log))
	defer publisher.Close()
	dispatcher := notify.NewDispatcher(approvalSink, notify.WithLogger(log))
	defer dispatcher.Close()

	b := newBackends(db, rdb)

	blockLog, err := audit.NewLog(b.blocks, log)
	if err != nil {
		return err
	}

	limiter, err := rlservice.New(b.counters, rlmodels.DefaultLimiters(),
		rlservice.WithLogger(log),
		rlservice.WithAuditPublisher(publisher),
		rlservice.WithMetrics(rlmetrics.New(reg)),
		rlservice.WithAllowlist(b.allowlist),
		rlservice.WithStoreTimeout(cfg.Risk.CounterTimeout),
		rlservice.WithBreaker(circuit.New("rate-limit-store")),
	)
	if err != nil {
		return err
	}

	riskMetrics := riskmetrics.New(reg)
	providers, err := signalProviders(cfg, b, log)
	if err != nil {
		return err
	}
	riskOpts := []riskservice.Option{
		riskservice.WithLogger(log),
		riskservice.WithMetrics(riskMetrics),
		riskservice.WithAuditPublisher(publisher),
		riskservice.WithActivityRecorder(velocity.NewRecorder(b.activity)),
	}
	if b.tx != nil {
		riskOpts = append(riskOpts, riskservice.WithTxRunner(b.tx))
	}
	risk, err := riskservice.New(riskConfig(cfg.Risk), providers, b.assessments, blockLog, riskOpts...)
	if err != nil {
		return err
	}

	analyzer, err := spam.New(b.hashes, spam.WithLogger(log), spam.WithAuditPublisher(publisher))
	if err != nil {
		return err
	}

	engine, err := challenge.New(b.challenges,
		challenge.NewHTTPVerifier(cfg.Challenge.ProviderURL, cfg.Challenge.ProviderSecret,
			challenge.WithHTTPClient(&http.Client{Timeout: cfg.Challenge.VerifyTimeout}),
		),
		challenge.WithTTL(cfg.Challenge.TTL),
		challenge.WithVerifyTimeout(cfg.Challenge.VerifyTimeout),
		challenge.WithExpectedHostname(cfg.Challenge.ExpectedHostname),
		challenge.WithLogger(log),
		challenge.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	approvals, err := approvalservice.New(b.approvals, payoutservice.NewProcessor(b.payouts, log),
		approvalservice.WithNotifier(dispatcher),
		approvalservice.WithLogger(log),
		approvalservice.WithAuditPublisher(publisher),
		approvalservice.WithMetrics(approvalmetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	payoutOpts := []payoutservice.Option{
		payoutservice.WithLogger(log),
		payoutservice.WithAuditPublisher(publisher),
		payoutservice.WithMetrics(payoutmetrics.New(reg)),
	}
	if b.tx != nil {
		payoutOpts = append(payoutOpts, payoutservice.WithTxRunner(b.tx))
	}
	payouts, err := payoutservice.New(payoutPolicy(cfg.Payout), b.payouts, limiter, approvals, blockLog, payoutOpts...)
	if err != nil {
		return err
	}

	g, err := gate.New(risk, limiter, analyzer, engine, blockLog, gate.WithLogger(log))
	if err != nil {
		return err
	}

	tokens := jwttoken.NewJWTService(cfg.Admin.JWTSigningKey, cfg.Admin.JWTIssuer, cfg.Admin.JWTAudience)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:        httptransport.NewHandler(g, engine, payouts, analyzer, checks, log),
		RateLimit:      rlmiddleware.New(limiter, log),
		AdminValidator: tokens,
		Admin: []httptransport.AdminRoutes{
			approvalhandler.New(approvals, log),
			riskhandler.New(risk, blockLog, log),
			rlhandler.New(b.allowlist, limiter, log),
		},
		Metrics: reg.Handler(),
		Logger:  log,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting riskgate", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

// signalProviders returns unguarded providers; riskservice.New applies the
// timeout guard to each.
func signalProviders(cfg *config.Config, b *backends, log *slog.Logger) ([]signals.Provider, error) {
	blocklist, err := ipreputation.ParseBlocklist(cfg.Reputation.Blocklist)
	if err != nil {
		return nil, fmt.Errorf("parse IP_BLOCKLIST: %w", err)
	}
	var source ipreputation.Source
	if cfg.Reputation.URL != "" {
		source = ipreputation.NewHTTPSource(cfg.Reputation.URL,
			ipreputation.WithAPIKey(cfg.Reputation.APIKey),
			ipreputation.WithHTTPClient(&http.Client{Timeout: cfg.Reputation.Timeout}),
			ipreputation.WithBreaker(circuit.New("ip-reputation", circuit.WithProbeInterval(30*time.Second))),
		)
	}

	raw := []signals.Provider{
		bot.New(),
		ipreputation.New(source,
			ipreputation.WithCache(b.reputation),
			ipreputation.WithBlocklist(blocklist),
			ipreputation.WithCacheTTL(cfg.Reputation.CacheTTL),
			ipreputation.WithLogger(log),
		),
		trust.New(),
		behavioral.New(behavioral.DefaultThresholds()),
		velocity.New(b.activity, velocity.DefaultRules()),
	}
	return raw, nil
}

func riskConfig(rc config.RiskConfig) riskservice.Config {
	c := riskservice.DefaultConfig()
	if rc.HasWeights() {
		c.Weights = map[models.Category]float64{
			models.CategoryBot:        rc.WeightBot,
			models.CategoryIP:         rc.WeightIP,
			models.CategoryTrust:      rc.WeightTrust,
			models.CategoryBehavioral: rc.WeightBehavioral,
			models.CategoryVelocity:   rc.WeightVelocity,
		}
	}
	if rc.SoftChallengeAt > 0 {
		c.Thresholds.SoftChallenge = rc.SoftChallengeAt
	}
	if rc.HardChallengeAt > 0 {
		c.Thresholds.HardChallenge = rc.HardChallengeAt
	}
	if rc.BlockAt > 0 {
		c.Thresholds.Block = rc.BlockAt
	}
	if rc.SignalTimeout > 0 {
		c.SignalTimeout = rc.SignalTimeout
	}
	return c
}

func payoutPolicy(pc config.PayoutConfig) payoutservice.Policy {
	p := payoutservice.DefaultPolicy()
	override := func(dst *decimal.Decimal, v int64) {
		if v > 0 {
			*dst = decimal.NewFromInt(v)
		}
	}
	override(&p.MaxPerTransaction, pc.MaxPerTransaction)
	override(&p.NewAccountCeiling, pc.NewAccountCeiling)
	override(&p.Rolling24h, pc.Rolling24h)
	override(&p.Monthly, pc.Monthly)
	override(&p.ApprovalThreshold, pc.ApprovalThreshold)
	if pc.NewAccountDays > 0 {
		p.NewAccountAge = time.Duration(pc.NewAccountDays) * 24 * time.Hour
	}
	return p
}
