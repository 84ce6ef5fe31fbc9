package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fakeGateway struct {
	mu       sync.Mutex
	name     string
	err      error
	requests []payment.InvoiceRequest
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) RequestInvoice(_ context.Context, req payment.InvoiceRequest) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Invoice{
		Gateway:   g.name,
		InvoiceID: "inv-" + req.OrderID,
		URL:       "https://pay.example/" + req.OrderID,
	}, nil
}

func (g *fakeGateway) NormalizeNotification(context.Context, payment.Notification) (*payment.CanonicalEvent, error) {
	return nil, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	store     *memory.Store
	gateway   *fakeGateway
	publisher *recordingPublisher
	ids       *seqIDs
	pricing   Pricing
}

func newFixture(t *testing.T, stockA, stockB int) *fixture {
	t.Helper()
	st := memory.NewStore()
	require.NoError(t, st.PutProduct(catalog.Product{
		ID: "A", Name: "Mug", Price: decimal.RequireFromString("10.00"), InventoryCount: stockA, Active: true,
	}))
	require.NoError(t, st.PutProduct(catalog.Product{
		ID: "B", Name: "Coaster", Price: decimal.RequireFromString("5.00"), InventoryCount: stockB, Active: true,
	}))
	st.PutAddress(catalog.Address{
		ID:     "addr-1",
		UserID: "cust-1",
		Line:   "1 Nile St",
		City:   catalog.City{ID: "cai", Name: "Cairo", ShipmentFee: decimal.RequireFromString("20.00"), Active: true},
	})
	return &fixture{
		store:     st,
		gateway:   &fakeGateway{name: "myfatoorah"},
		publisher: &recordingPublisher{},
		ids:       &seqIDs{},
		pricing:   Pricing{TaxRate: domain.DefaultTaxRate, Currency: "EGP"},
	}
}

func (f *fixture) registry() *payment.Registry {
	return payment.NewRegistry(f.gateway.name, f.gateway)
}

func (f *fixture) placeOrder() *PlaceOrderUseCase {
	return NewPlaceOrderUseCase(f.store, f.registry(), f.ids, f.publisher, f.pricing, nil)
}

func (f *fixture) cancelOrder() *CancelOrderUseCase {
	return NewCancelOrderUseCase(f.store, f.publisher, nil)
}

func basicInput() PlaceOrderInput {
	return PlaceOrderInput{
		CustomerID:        "cust-1",
		CustomerName:      "Mona Adel",
		ProductIDs:        []string{"A", "B"},
		Quantities:        []int{2, 1},
		ShippingAddressID: "addr-1",
	}
}
