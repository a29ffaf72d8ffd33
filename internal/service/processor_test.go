package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/emedina/gamedepot/internal/model"
)

// fakeSettler records settlement calls.
type fakeSettler struct {
	mu    sync.Mutex
	calls []struct {
		id        uuid.UUID
		succeeded bool
	}
	err error
}

var _ Settler = (*fakeSettler)(nil)

func (f *fakeSettler) Settle(_ context.Context, id uuid.UUID, succeeded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct {
		id        uuid.UUID
		succeeded bool
	}{id, succeeded})
	return f.err
}

func (f *fakeSettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// inline makes the processor run scheduled work synchronously.
func inline(p *Processor) {
	p.after = func(_ time.Duration, f func()) *time.Timer {
		f()
		return time.NewTimer(0)
	}
}

func approve(model.Purchase) bool { return true }
func decline(model.Purchase) bool { return false }

func testPurchase() model.Purchase {
	return model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "game-001", Status: model.PurchasePending}
}

func TestProcessor_Submit_SettlesOnce(t *testing.T) {
	t.Parallel()
	settler := &fakeSettler{}
	p := NewProcessor(settler, approve, 0, nil)
	inline(p)

	purchase := testPurchase()
	if !p.Submit(purchase) {
		t.Fatalf("first submit rejected")
	}
	if settler.callCount() != 1 {
		t.Fatalf("want 1 settlement, got %d", settler.callCount())
	}
	if !settler.calls[0].succeeded || settler.calls[0].id != purchase.ID {
		t.Fatalf("unexpected settlement call: %+v", settler.calls[0])
	}
}

func TestProcessor_Submit_DuplicateIsNoop(t *testing.T) {
	t.Parallel()
	settler := &fakeSettler{}
	p := NewProcessor(settler, approve, 0, nil)
	inline(p)

	purchase := testPurchase()
	p.Submit(purchase)
	if p.Submit(purchase) {
		t.Fatalf("duplicate submit must be a no-op")
	}
	if settler.callCount() != 1 {
		t.Fatalf("want 1 settlement for duplicate submit, got %d", settler.callCount())
	}
}

func TestProcessor_PolicyDecidesOutcome(t *testing.T) {
	t.Parallel()
	settler := &fakeSettler{}
	p := NewProcessor(settler, decline, 0, nil)
	inline(p)

	p.Submit(testPurchase())
	if settler.calls[0].succeeded {
		t.Fatalf("declining policy produced a successful settlement")
	}
}

func TestProcessor_DeferredExecution(t *testing.T) {
	t.Parallel()
	settler := &fakeSettler{}
	p := NewProcessor(settler, approve, 10*time.Millisecond, nil)

	p.Submit(testPurchase())
	if settler.callCount() != 0 {
		t.Fatalf("settlement ran on the submit path")
	}
	p.Close() // waits for the scheduled attempt
	if settler.callCount() != 1 {
		t.Fatalf("want 1 settlement after Close, got %d", settler.callCount())
	}
}

func TestProcessor_SubmitAfterCloseRejected(t *testing.T) {
	t.Parallel()
	settler := &fakeSettler{}
	p := NewProcessor(settler, approve, 0, nil)
	inline(p)

	p.Close()
	if p.Submit(testPurchase()) {
		t.Fatalf("submit after close must be rejected")
	}
	if settler.callCount() != 0 {
		t.Fatalf("settlement after close")
	}
}

func TestRandomPolicy_Extremes(t *testing.T) {
	t.Parallel()
	always := RandomPolicy(1.0, 42)
	never := RandomPolicy(0.0, 42)
	for i := 0; i < 100; i++ {
		if !always(model.Purchase{}) {
			t.Fatalf("rate 1.0 declined")
		}
		if never(model.Purchase{}) {
			t.Fatalf("rate 0.0 approved")
		}
	}
}
