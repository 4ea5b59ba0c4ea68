package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"writer-backend/internal/users"
)

func newMemoryLedger(t *testing.T, credits int) (*Ledger, *MemoryStore, string) {
	t.Helper()
	repo := users.NewMemoryRepo()
	user := users.User{ID: "user-1", Email: "a@example.com", Role: users.RoleStandard, Credits: credits}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	store := NewMemoryStore(repo)
	return NewLedger(store), store, user.ID
}

func TestReserveDecrementsByOne(t *testing.T) {
	ledger, store, userID := newMemoryLedger(t, 2)
	bal, err := ledger.Reserve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if bal.Credits != 1 {
		t.Fatalf("expected 1 credit left, got %d", bal.Credits)
	}
	events := store.Events(userID)
	if len(events) != 1 || events[0].Delta != -1 || events[0].Reason != ReasonReserve {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestReserveAtZeroFailsWithoutMutation(t *testing.T) {
	ledger, store, userID := newMemoryLedger(t, 0)
	if _, err := ledger.Reserve(context.Background(), userID); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	bal, _ := ledger.Balance(context.Background(), userID)
	if bal.Credits != 0 {
		t.Fatalf("balance mutated to %d", bal.Credits)
	}
	if len(store.Events(userID)) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestConcurrentReservesOnLastCredit(t *testing.T) {
	ledger, _, userID := newMemoryLedger(t, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, failures := 0, 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(context.Background(), userID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrInsufficientCredits) {
				failures++
			}
		}()
	}
	wg.Wait()

	if successes != 1 || failures != 1 {
		t.Fatalf("expected one success and one failure, got %d/%d", successes, failures)
	}
	bal, _ := ledger.Balance(context.Background(), userID)
	if bal.Credits != 0 {
		t.Fatalf("expected 0 credits, got %d", bal.Credits)
	}
}

func TestBalanceDoesNotTouchUpdatedAt(t *testing.T) {
	ledger, _, userID := newMemoryLedger(t, 3)
	ctx := context.Background()
	before, err := ledger.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	after, err := ledger.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if after.Credits != 3 || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("balance read changed the account: before %+v after %+v", before, after)
	}
	if _, err := ledger.Balance(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGrantRejectsNonPositiveAmounts(t *testing.T) {
	ledger, _, userID := newMemoryLedger(t, 5)
	for _, amount := range []int{0, -3} {
		if _, err := ledger.Grant(context.Background(), userID, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	bal, err := ledger.Grant(context.Background(), userID, 30)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if bal.Credits != 35 {
		t.Fatalf("expected 35, got %d", bal.Credits)
	}
}

func TestReserveUnknownUser(t *testing.T) {
	ledger, _, _ := newMemoryLedger(t, 1)
	if _, err := ledger.Reserve(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	want := map[string][2]int64{"basic": {10, 1900}, "pro": {30, 4900}, "business": {70, 9900}}
	plans := cat.Plans()
	if len(plans) != len(want) {
		t.Fatalf("expected %d plans, got %d", len(want), len(plans))
	}
	for _, p := range plans {
		w, ok := want[p.ID]
		if !ok || int64(p.Credits) != w[0] || p.PriceCents != w[1] {
			t.Fatalf("unexpected plan %+v", p)
		}
	}
	if _, err := cat.Find("enterprise"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}
