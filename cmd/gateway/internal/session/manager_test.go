package session_test

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/session"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/subscription"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/testutils"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

var supported = []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"}

func setup(t *testing.T) (*session.Manager, *subscription.Registry) {
	catalog, err := instrument.NewCatalog(supported, nil, instrument.Range{Min: 100, Max: 500})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	gen := pricing.NewGenerator(zap.NewNop(), catalog, &testutils.MockRand{ValFloat: 0.5},
		&testutils.MockClock{CurrentTime: time.Unix(0, 0)}, pricing.Options{})
	registry := subscription.NewRegistry(catalog)
	return session.NewManager(catalog, registry, gen, zap.NewNop()), registry
}

func TestManager_ConnectStartsUnauthenticated(t *testing.T) {
	m, registry := setup(t)
	client := testutils.NewMockClient("c1")

	s := m.Connect(client)
	if s.ID() == "" {
		t.Fatal("Expected a session id")
	}
	if s.State() != session.StateConnected {
		t.Errorf("Expected connected, got %s", s.State())
	}
	if registry.Get(s.ID()).Len() != 0 {
		t.Error("Unauthenticated session should have no subscriptions")
	}

	other := m.Connect(testutils.NewMockClient("c2"))
	if other.ID() == s.ID() {
		t.Error("Session ids must be unique")
	}
}

func TestManager_AuthenticateSendsResultThenSnapshot(t *testing.T) {
	m, registry := setup(t)
	client := testutils.NewMockClient("c1")
	s := m.Connect(client)

	res, err := m.Authenticate(s.ID(), "trader@example.com")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if res.Identity != "trader@example.com" {
		t.Errorf("Expected identity echo, got %s", res.Identity)
	}
	if len(res.SupportedInstruments) != len(supported) {
		t.Fatalf("Expected %d instruments, got %v", len(supported), res.SupportedInstruments)
	}
	for i, sym := range supported {
		if res.SupportedInstruments[i] != sym {
			t.Errorf("Instrument %d: expected %s, got %s", i, sym, res.SupportedInstruments[i])
		}
	}

	if len(client.Messages) != 2 {
		t.Fatalf("Expected authResult + initialSnapshot, got %d messages", len(client.Messages))
	}
	if client.Messages[0].Type != protocol.TypeAuthResult {
		t.Errorf("First message should be authResult, got %s", client.Messages[0].Type)
	}
	if client.Messages[1].Type != protocol.TypeInitialSnapshot {
		t.Errorf("Second message should be initialSnapshot, got %s", client.Messages[1].Type)
	}

	quotes := client.Messages[1].Data.([]models.Quote)
	if len(quotes) != len(supported) {
		t.Fatalf("Snapshot should carry every instrument, got %d", len(quotes))
	}
	for i, q := range quotes {
		if q.Symbol != supported[i] || q.Price <= 0 {
			t.Errorf("Bad snapshot entry %d: %+v", i, q)
		}
	}

	if s.State() != session.StateActive {
		t.Errorf("Expected active, got %s", s.State())
	}
	if registry.Get(s.ID()).Len() != len(supported) {
		t.Error("Default subscriptions should cover every instrument")
	}
}

func TestManager_SubscriptionUpdateBeforeAuthIsNoop(t *testing.T) {
	m, registry := setup(t)
	s := m.Connect(testutils.NewMockClient("c1"))

	if _, ok := m.UpdateSubscriptions(s.ID(), []string{"GOOG"}); ok {
		t.Error("Update before authentication should be rejected")
	}
	if registry.Len() != 0 {
		t.Error("Registry should not have an entry for an unauthenticated session")
	}
}

func TestManager_UpdateReplacesSubscriptions(t *testing.T) {
	m, registry := setup(t)
	s := m.Connect(testutils.NewMockClient("c1"))
	m.Authenticate(s.ID(), "a@example.com")

	set, ok := m.UpdateSubscriptions(s.ID(), []string{"TSLA", "BOGUS"})
	if !ok {
		t.Fatal("Expected update to be accepted")
	}
	if set.Len() != 1 || !set.Has("TSLA") {
		t.Errorf("Expected {TSLA}, got %v", set.Symbols())
	}
	if got := registry.Get(s.ID()); got.Len() != 1 || !got.Has("TSLA") {
		t.Errorf("Registry should hold {TSLA}, got %v", got.Symbols())
	}
}

func TestManager_ReauthenticationResetsSubscriptions(t *testing.T) {
	m, registry := setup(t)
	client := testutils.NewMockClient("c1")
	s := m.Connect(client)
	m.Authenticate(s.ID(), "first@example.com")
	m.UpdateSubscriptions(s.ID(), nil)

	res, err := m.Authenticate(s.ID(), "second@example.com")
	if err != nil {
		t.Fatalf("Re-authenticate failed: %v", err)
	}
	if res.Identity != "first@example.com" {
		t.Errorf("Identity is bound once, got %s", res.Identity)
	}
	if registry.Get(s.ID()).Len() != len(supported) {
		t.Error("Re-authentication should restore the full default set")
	}
	if n := len(client.OfType(protocol.TypeInitialSnapshot)); n != 2 {
		t.Errorf("Each authentication sends one snapshot, got %d", n)
	}
}

func TestManager_DisconnectIsIdempotent(t *testing.T) {
	m, registry := setup(t)
	client := testutils.NewMockClient("c1")
	s := m.Connect(client)
	m.Authenticate(s.ID(), "a@example.com")

	keep := m.Connect(testutils.NewMockClient("c2"))
	m.Authenticate(keep.ID(), "b@example.com")

	m.Disconnect(s.ID())
	m.Disconnect(s.ID())
	m.Disconnect("unknown")

	if s.State() != session.StateTerminated {
		t.Errorf("Expected terminated, got %s", s.State())
	}
	if _, ok := m.Get(s.ID()); ok {
		t.Error("Disconnected session should no longer be found")
	}
	if got, ok := m.Get(keep.ID()); !ok || got != keep {
		t.Error("Live session should still be found")
	}
	if !client.Closed {
		t.Error("Client should be closed on disconnect")
	}
	if registry.Get(s.ID()).Len() != 0 {
		t.Error("Subscriptions should be removed on disconnect")
	}
	if registry.Get(keep.ID()).Len() != len(supported) {
		t.Error("Other sessions must be unaffected")
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 remaining session, got %d", m.Count())
	}

	if _, err := m.Authenticate(s.ID(), "a@example.com"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession after disconnect, got %v", err)
	}
	if _, ok := m.UpdateSubscriptions(s.ID(), []string{"GOOG"}); ok {
		t.Error("Update after disconnect should be a no-op")
	}
}

func TestManager_ActiveListsOnlyAuthenticated(t *testing.T) {
	m, _ := setup(t)
	a := m.Connect(testutils.NewMockClient("a"))
	m.Connect(testutils.NewMockClient("b"))
	m.Authenticate(a.ID(), "a@example.com")

	active := m.Active()
	if len(active) != 1 || active[0].ID() != a.ID() {
		t.Errorf("Expected only session a to be active, got %d sessions", len(active))
	}
	if active[0].Identity() != "a@example.com" {
		t.Errorf("Unexpected identity %s", active[0].Identity())
	}
}
