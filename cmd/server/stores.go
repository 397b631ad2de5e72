package main

import (
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"riskgate/internal/approval/store"
	"riskgate/internal/audit"
	"riskgate/internal/challenge"
	payoutstore "riskgate/internal/payout/store"
	"riskgate/internal/platform/postgres"
	"riskgate/internal/ratelimit/store/allowlist"
	"riskgate/internal/ratelimit/store/counter"
	riskstore "riskgate/internal/risk/store"
	"riskgate/internal/signals/ipreputation"
	"riskgate/internal/signals/velocity"
	"riskgate/internal/spam"

	approvalports "riskgate/internal/approval/ports"
	payoutports "riskgate/internal/payout/ports"
	rlports "riskgate/internal/ratelimit/ports"
	riskports "riskgate/internal/risk/ports"
)

const velocityRetention = 24 * time.Hour

// backends holds one implementation per store. Records go to Postgres and
// hot-path counters to Redis when configured; anything missing falls back to
// process memory.
type backends struct {
	assessments riskports.AssessmentStore
	blocks      audit.Store
	approvals   approvalports.Store
	payouts     payoutports.History
	// tx is nil without Postgres; services then run steps directly.
	tx *postgres.TxRunner

	counters   rlports.CounterStore
	allowlist  rlports.AllowlistStore
	activity   velocity.ActivityStore
	challenges challenge.Store
	hashes     spam.HashIndex
	reputation ipreputation.Cache
}

func newBackends(db *sql.DB, rdb redis.UniversalClient) *backends {
	b := &backends{}
	if db != nil {
		b.assessments = riskstore.NewPostgresStore(db)
		b.blocks = audit.NewPostgresStore(db)
		b.approvals = store.NewPostgresStore(db)
		b.payouts = payoutstore.NewPostgresStore(db)
		b.allowlist = allowlist.NewPostgres(db)
		b.tx = postgres.NewTxRunner(db)
	} else {
		b.assessments = riskstore.NewInMemoryStore()
		b.blocks = audit.NewInMemoryStore()
		b.approvals = store.NewInMemoryStore()
		b.payouts = payoutstore.NewInMemoryStore()
		b.allowlist = allowlist.NewInMemoryAllowlistStore()
	}

	if rdb != nil {
		b.counters = counter.NewRedisCounterStore(rdb)
		b.activity = velocity.NewRedisStore(rdb, velocityRetention)
		b.challenges = challenge.NewRedisStore(rdb)
		b.hashes = spam.NewRedisIndex(rdb)
		b.reputation = ipreputation.NewRedisCache(rdb)
		return b
	}

	// Counters must be shared across replicas, so Postgres beats memory.
	if db != nil {
		b.counters = counter.NewPostgresCounterStore(db)
	} else {
		b.counters = counter.NewInMemoryCounterStore()
	}
	b.activity = velocity.NewMemoryStore(velocityRetention)
	b.challenges = challenge.NewInMemoryStore()
	b.hashes = spam.NewMemoryIndex()
	b.reputation = ipreputation.NewMemoryCache()
	return b
}
