package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/emedina/gamedepot/internal/model"
)

// Settler resolves a pending purchase to a terminal state. Satisfied by Ledger.
type Settler interface {
	Settle(ctx context.Context, purchaseID uuid.UUID, succeeded bool) error
}

// SettlementPolicy decides the payment outcome for a purchase. Injected so
// tests can force either outcome deterministically.
type SettlementPolicy func(p model.Purchase) bool

// RandomPolicy approves purchases with the given probability, drawing from
// its own seeded source rather than the global one.
func RandomPolicy(successRate float64, seed int64) SettlementPolicy {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func(model.Purchase) bool {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() < successRate
	}
}

// Processor drives purchases from pending to a terminal state off the
// calling request's timeline. Each submitted purchase gets exactly one
// settlement attempt after a fixed delay; the attempt is terminal either
// way and is never cancelled or retried.
type Processor struct {
	settler Settler
	policy  SettlementPolicy
	delay   time.Duration
	log     *zap.Logger

	// after schedules deferred work; replaced in tests to run inline.
	after func(d time.Duration, f func()) *time.Timer

	mu        sync.Mutex
	scheduled map[uuid.UUID]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewProcessor constructs the settlement processor.
func NewProcessor(settler Settler, policy SettlementPolicy, delay time.Duration, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		settler:   settler,
		policy:    policy,
		delay:     delay,
		log:       log,
		after:     time.AfterFunc,
		scheduled: make(map[uuid.UUID]struct{}),
	}
}

// Submit schedules the single settlement attempt for the purchase.
// Submitting the same purchase id again is a no-op, which guards the
// exactly-once invariant against re-entrant scheduling. Returns false
// when nothing was scheduled.
func (p *Processor) Submit(purchase model.Purchase) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, dup := p.scheduled[purchase.ID]; dup {
		return false
	}
	p.scheduled[purchase.ID] = struct{}{}
	p.wg.Add(1)
	p.after(p.delay, func() {
		defer p.wg.Done()
		p.settle(purchase)
	})
	return true
}

// settle applies the policy decision. The worker owns the purchase id for
// the duration of the call; the repository's compare-and-set keeps a
// concurrent settlement from applying twice.
func (p *Processor) settle(purchase model.Purchase) {
	succeeded := p.policy(purchase)
	err := p.settler.Settle(context.Background(), purchase.ID, succeeded)
	if err != nil {
		p.log.Error("settlement",
			zap.String("purchaseId", purchase.ID.String()),
			zap.Error(err),
		)
		return
	}
	p.log.Info("settlement",
		zap.String("purchaseId", purchase.ID.String()),
		zap.String("gameId", purchase.GameID),
		zap.Bool("succeeded", succeeded),
	)
}

// Close stops accepting submissions and waits for scheduled settlements
// to finish. Pending timers still fire; settlement is not cancellable
// once scheduled.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
