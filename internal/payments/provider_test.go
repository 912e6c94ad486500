package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	calls   int
	last    SessionRequest
	session Session
	err     error
}

func (f *fakeProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	f.calls++
	f.last = req
	return f.session, f.err
}

func TestManagerDefaultsToMidtrans(t *testing.T) {
	midtrans := &fakeProvider{session: Session{Token: "snap-token"}}
	stripe := &fakeProvider{session: Session{Token: "cs_1"}}

	mgr, err := NewManager(map[string]Provider{ProviderMidtrans: midtrans, ProviderStripe: stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if mgr.DefaultProvider() != ProviderMidtrans {
		t.Fatalf("expected midtrans default, got %q", mgr.DefaultProvider())
	}

	session, err := mgr.CreateSession(context.Background(), "", SessionRequest{TransactionID: "ORDER-1-1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != ProviderMidtrans || session.Token != "snap-token" {
		t.Fatalf("unexpected session %+v", session)
	}
	if stripe.calls != 0 {
		t.Fatalf("expected stripe to remain unused")
	}
}

func TestManagerUsesPreferredProvider(t *testing.T) {
	midtrans := &fakeProvider{}
	stripe := &fakeProvider{session: Session{Token: "cs_1"}}

	mgr, err := NewManager(map[string]Provider{ProviderMidtrans: midtrans, ProviderStripe: stripe}, WithDefaultProvider(ProviderMidtrans))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateSession(context.Background(), "Stripe", SessionRequest{TransactionID: "ORDER-1-1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != ProviderStripe || stripe.calls != 1 || midtrans.calls != 0 {
		t.Fatalf("expected stripe to handle call, got %+v", session)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	mgr, err := NewManager(map[string]Provider{ProviderMidtrans: &fakeProvider{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.CreateSession(context.Background(), "paypal", SessionRequest{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestManagerPropagatesProviderFailure(t *testing.T) {
	boom := errors.New("gateway down")
	mgr, _ := NewManager(map[string]Provider{ProviderMidtrans: &fakeProvider{err: boom}})
	if _, err := mgr.CreateSession(context.Background(), "", SessionRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error for empty providers")
	}
	if _, err := NewManager(map[string]Provider{" ": &fakeProvider{}}); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
