package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/emedina/gamedepot/internal/repository"
)

var (
	_ repository.PurchaseRepository    = (*PurchaseRepo)(nil)
	_ repository.EntitlementRepository = (*EntitlementRepo)(nil)
	_ repository.StatusRepository      = (*StatusRepo)(nil)
)

func TestPurchaseRepo_SettleIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewPurchaseRepo()

	id := uuid.Must(uuid.NewV4())
	p := &model.Purchase{ID: id, UserID: "1", GameID: "g", Status: model.PurchasePending, PurchaseDate: time.Now()}
	if err := r.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	applied, err := r.Settle(ctx, id, model.PurchaseCompleted, time.Now())
	if err != nil || !applied {
		t.Fatalf("first settle: applied=%v err=%v", applied, err)
	}
	applied, err = r.Settle(ctx, id, model.PurchaseFailed, time.Now())
	if err != nil || applied {
		t.Fatalf("second settle must be a no-op: applied=%v err=%v", applied, err)
	}
	got, _ := r.Get(ctx, id)
	if got.Status != model.PurchaseCompleted || got.CompletedAt == nil {
		t.Fatalf("terminal state mutated: %+v", got)
	}
}

func TestPurchaseRepo_SettleConcurrentAppliesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewPurchaseRepo()

	id := uuid.Must(uuid.NewV4())
	if err := r.Create(ctx, &model.Purchase{ID: id, Status: model.PurchasePending}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 16
	applied := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.Settle(ctx, id, model.PurchaseCompleted, time.Now())
			if err != nil {
				t.Errorf("Settle: %v", err)
			}
			applied <- ok
		}()
	}
	wg.Wait()
	close(applied)

	wins := 0
	for ok := range applied {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly one applied settlement, got %d", wins)
	}
}

func TestPurchaseRepo_SecondInFlightPurchaseConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewPurchaseRepo()

	first := &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g", Status: model.PurchasePending}
	if err := r.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g", Status: model.PurchasePending}
	if err := r.Create(ctx, second); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict while first purchase settles, got %v", err)
	}

	// Other users and other games are unaffected.
	if err := r.Create(ctx, &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "2", GameID: "g", Status: model.PurchasePending}); err != nil {
		t.Fatalf("Create other user: %v", err)
	}
	if err := r.Create(ctx, &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g2", Status: model.PurchasePending}); err != nil {
		t.Fatalf("Create other game: %v", err)
	}

	// Once the first purchase settles, a new one may be recorded.
	if _, err := r.Settle(ctx, first.ID, model.PurchaseFailed, time.Now()); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if err := r.Create(ctx, second); err != nil {
		t.Fatalf("Create after settlement: %v", err)
	}
}

func TestPurchaseRepo_SettleRejectsNonTerminal(t *testing.T) {
	t.Parallel()
	r := NewPurchaseRepo()
	if _, err := r.Settle(context.Background(), uuid.Must(uuid.NewV4()), model.PurchaseProcessing, time.Now()); !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
}

func TestPurchaseRepo_ListByUser_Order(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewPurchaseRepo()

	base := time.Now()
	for i, offset := range []time.Duration{-2 * time.Hour, 0, -1 * time.Hour} {
		p := &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: fmt.Sprintf("g%d", i), PurchaseDate: base.Add(offset)}
		if err := r.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := r.Create(ctx, &model.Purchase{ID: uuid.Must(uuid.NewV4()), UserID: "2", GameID: "g0", PurchaseDate: base}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := r.ListByUser(ctx, "1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("want 3, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].PurchaseDate.After(out[i-1].PurchaseDate) {
			t.Fatalf("not newest first")
		}
	}
}

func TestEntitlementRepo_SecondActiveGrantConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewEntitlementRepo()

	first := &model.Entitlement{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g", Active: true}
	if err := r.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := &model.Entitlement{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g", Active: true}
	if err := r.Create(ctx, second); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestEntitlementRepo_IncrementDownloadCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewEntitlementRepo()

	e := &model.Entitlement{ID: uuid.Must(uuid.NewV4()), UserID: "1", GameID: "g", Active: true, MaxDownloads: 5}
	if err := r.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := r.IncrementDownloadCount(ctx, "1", "g"); err != nil {
			t.Fatalf("IncrementDownloadCount: %v", err)
		}
	}
	got, err := r.GetActive(ctx, "1", "g")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got.DownloadCount != 3 {
		t.Fatalf("want 3, got %d", got.DownloadCount)
	}

	// Unknown pair is a silent no-op.
	if err := r.IncrementDownloadCount(ctx, "ghost", "g"); err != nil {
		t.Fatalf("want no-op, got %v", err)
	}
}

func TestStatusRepo_UpdateRequiresRow(t *testing.T) {
	t.Parallel()
	r := NewStatusRepo()
	_, err := r.Update(context.Background(), "1", "g", func(*model.DownloadStatus) error { return nil })
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStatusRepo_UpdateErrorLeavesRowUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewStatusRepo()

	if err := r.Put(ctx, &model.DownloadStatus{UserID: "1", GameID: "g", State: model.DownloadIdle}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	boom := errors.New("boom")
	_, err := r.Update(ctx, "1", "g", func(st *model.DownloadStatus) error {
		st.State = model.Downloading
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want fn error, got %v", err)
	}
	st, _ := r.Get(ctx, "1", "g")
	if st.State != model.DownloadIdle {
		t.Fatalf("aborted update mutated the row: %+v", st)
	}
}

func TestStatusRepo_ConcurrentUpdatesSerializePerKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewStatusRepo()

	if err := r.Put(ctx, &model.DownloadStatus{UserID: "1", GameID: "g", TotalBlocks: 1000}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Update(ctx, "1", "g", func(st *model.DownloadStatus) error {
				st.DownloadedBlocks++
				st.DownloadedSize += 10
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := r.Get(ctx, "1", "g")
	if st.DownloadedBlocks != n || st.DownloadedSize != n*10 {
		t.Fatalf("lost updates: %+v", st)
	}
}

func TestStatusRepo_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewStatusRepo()

	if err := r.Put(ctx, &model.DownloadStatus{UserID: "1", GameID: "g", FailedBlocks: []string{"a"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := r.Get(ctx, "1", "g")
	got.FailedBlocks[0] = "mutated"
	got.DownloadedBlocks = 99

	fresh, _ := r.Get(ctx, "1", "g")
	if fresh.FailedBlocks[0] != "a" || fresh.DownloadedBlocks != 0 {
		t.Fatalf("Get leaked internal state: %+v", fresh)
	}
}
