package subscription_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/subscription"
)

func setup(t *testing.T) *subscription.Registry {
	c, err := instrument.NewCatalog([]string{"GOOG", "TSLA", "AMZN", "META", "NVDA"}, nil, instrument.Range{Min: 100, Max: 500})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return subscription.NewRegistry(c)
}

func TestRegistry_DropsUnknownSymbols(t *testing.T) {
	r := setup(t)

	r.Set("s1", []string{"GOOG", "BOGUS"})

	got := r.Get("s1")
	if got.Len() != 1 || !got.Has("GOOG") {
		t.Errorf("Expected {GOOG}, got %v", got.Symbols())
	}
}

func TestRegistry_ReplacesInsteadOfMerging(t *testing.T) {
	r := setup(t)

	r.Set("s1", []string{"GOOG", "TSLA"})
	r.Set("s1", []string{"AMZN"})

	got := r.Get("s1")
	if got.Len() != 1 || !got.Has("AMZN") {
		t.Errorf("Expected {AMZN} after replacement, got %v", got.Symbols())
	}
}

func TestRegistry_EmptySetIsStored(t *testing.T) {
	r := setup(t)

	r.Set("s1", []string{"GOOG"})
	r.Set("s1", nil)

	if got := r.Get("s1"); got.Len() != 0 {
		t.Errorf("Expected empty set, got %v", got.Symbols())
	}
	if r.Len() != 1 {
		t.Errorf("Empty subscriptions should keep the entry, got %d entries", r.Len())
	}
}

func TestRegistry_UnknownSessionIsEmpty(t *testing.T) {
	r := setup(t)

	got := r.Get("nobody")
	if got == nil || got.Len() != 0 {
		t.Errorf("Expected non-nil empty set, got %v", got)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := setup(t)
	r.Set("s1", []string{"GOOG"})

	got := r.Get("s1")
	got["TSLA"] = struct{}{}

	if r.Get("s1").Has("TSLA") {
		t.Error("Mutating a returned set leaked into the registry")
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := setup(t)
	r.Set("s1", []string{"GOOG"})
	r.Set("s2", []string{"TSLA"})

	r.Remove("s1")
	r.Remove("s1")
	r.Remove("never-existed")

	if r.Get("s1").Len() != 0 {
		t.Error("s1 should be gone")
	}
	if got := r.Get("s2"); got.Len() != 1 || !got.Has("TSLA") {
		t.Errorf("s2 should be untouched, got %v", got.Symbols())
	}
}

func TestSet_SymbolsSorted(t *testing.T) {
	r := setup(t)
	set := r.Set("s1", []string{"TSLA", "AMZN", "GOOG"})

	got := fmt.Sprint(set.Symbols())
	if got != "[AMZN GOOG TSLA]" {
		t.Errorf("Expected sorted symbols, got %s", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	// Run with `go test -race ./...`
	r := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("s%d", i%2)
		wg.Add(3)
		go func() {
			defer wg.Done()
			r.Set(id, []string{"GOOG", "TSLA"})
		}()
		go func() {
			defer wg.Done()
			for sym := range r.Get(id) {
				if sym != "GOOG" && sym != "TSLA" {
					t.Errorf("Unexpected symbol %s", sym)
				}
			}
		}()
		go func() {
			defer wg.Done()
			r.Remove(id)
		}()
	}
	wg.Wait()
}
