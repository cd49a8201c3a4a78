package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/events"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/store"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []events.CheckoutCompleted
	err    error
}

func (m *mockPublisher) PublishCheckoutCompleted(_ context.Context, ev events.CheckoutCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

type failingWriter struct {
	err   error
	calls int
}

func (f *failingWriter) WriteBill(context.Context, *domain.Bill) error {
	f.calls++
	return f.err
}

func product(id, name, price string) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), OutletID: "outlet-tech"}
}

func setup(t *testing.T, w BillWriter, pub Publisher) (*Service, *ledger.Registry) {
	t.Helper()
	reg := ledger.NewRegistry(store.NewMemoryStore(), zap.NewNop())
	opts := DefaultOptions()
	opts.Breaker.MaxFailures = 2
	opts.Breaker.OpenTimeout = time.Minute
	return NewService(reg, w, pub, opts, zap.NewNop()), reg
}

func fillCart(t *testing.T, reg *ledger.Registry, session string) *ledger.Ledger {
	t.Helper()
	ctx := context.Background()
	cart, err := reg.Get(ctx, session)
	require.NoError(t, err)
	require.NoError(t, cart.AddProduct(ctx, product("sku1", "Mouse", "9.99"), 3, true))
	require.NoError(t, cart.AddProduct(ctx, product("sku2", "Keyboard", "49.99"), 1, true))
	return cart
}

func TestCheckout_Success(t *testing.T) {
	w := NewMemoryBillWriter(zap.NewNop())
	pub := &mockPublisher{}
	svc, reg := setup(t, w, pub)
	cart := fillCart(t, reg, "s1")

	res, err := svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)

	bill := res.Bill
	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, "u1", bill.UserID)
	assert.Equal(t, "USD", bill.Currency)
	assert.Equal(t, domain.BillStatusCompleted, bill.Status)
	require.Len(t, bill.Lines, 2)
	assert.Equal(t, "sku1", bill.Lines[0].ProductID)
	assert.Equal(t, "29.97", bill.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "79.96", bill.Total.StringFixed(2))
	assert.True(t, bill.Shipping.IsZero())

	stored, err := w.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.Total, stored.Total)

	assert.Equal(t, 0, cart.TotalProducts())

	require.Len(t, pub.events, 1)
	assert.Equal(t, bill.ID, pub.events[0].BillID)
	assert.Equal(t, 4, pub.events[0].ItemCount)
}

func TestCheckout_RequiresUser(t *testing.T) {
	svc, reg := setup(t, NewMemoryBillWriter(nil), nil)
	cart := fillCart(t, reg, "s1")

	_, err := svc.Checkout(context.Background(), Request{SessionID: "s1"})

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 4, cart.TotalProducts())
}

func TestCheckout_EmptyCart(t *testing.T) {
	w := NewMemoryBillWriter(nil)
	svc, _ := setup(t, w, nil)

	_, err := svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, w.Len())
}

func TestCheckout_WriteFailureKeepsCart(t *testing.T) {
	boom := errors.New("db down")
	pub := &mockPublisher{}
	svc, reg := setup(t, &failingWriter{err: boom}, pub)
	cart := fillCart(t, reg, "s1")

	_, err := svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, cart.TotalProducts())
	assert.Empty(t, pub.events)
}

func TestCheckout_BreakerOpens(t *testing.T) {
	w := &failingWriter{err: errors.New("db down")}
	svc, reg := setup(t, w, nil)
	fillCart(t, reg, "s1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Checkout(ctx, Request{SessionID: "s1", UserID: "u1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBillingUnavailable)
	}

	_, err := svc.Checkout(ctx, Request{SessionID: "s1", UserID: "u1"})
	assert.ErrorIs(t, err, ErrBillingUnavailable)
	assert.Equal(t, 2, w.calls)
}

func TestCheckout_DuplicateDoesNotTripBreaker(t *testing.T) {
	w := &failingWriter{err: ErrDuplicateBill}
	svc, reg := setup(t, w, nil)
	fillCart(t, reg, "s1")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Checkout(ctx, Request{SessionID: "s1", UserID: "u1"})
		assert.ErrorIs(t, err, ErrDuplicateBill)
	}
	assert.Equal(t, 4, w.calls)
}

func TestCheckout_PublishFailureStillClears(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	w := NewMemoryBillWriter(nil)
	svc, reg := setup(t, w, pub)
	cart := fillCart(t, reg, "s1")

	res, err := svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})

	require.NoError(t, err)
	assert.NotNil(t, res.Bill)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 0, cart.TotalProducts())
}

func TestCheckout_InvalidSession(t *testing.T) {
	svc, _ := setup(t, NewMemoryBillWriter(nil), nil)

	_, err := svc.Checkout(context.Background(), Request{SessionID: " ", UserID: "u1"})

	assert.ErrorIs(t, err, ledger.ErrInvalidSession)
}

func TestCheckout_CurrencyFromOptions(t *testing.T) {
	reg := ledger.NewRegistry(store.NewMemoryStore(), zap.NewNop())
	svc := NewService(reg, NewMemoryBillWriter(nil), nil, Options{Currency: "eur"}, nil)
	fillCart(t, reg, "s1")

	res, err := svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "EUR", res.Bill.Currency)
}

type slowWriter struct {
	*MemoryBillWriter
	delay time.Duration
}

func (s *slowWriter) WriteBill(ctx context.Context, bill *domain.Bill) error {
	time.Sleep(s.delay)
	return s.MemoryBillWriter.WriteBill(ctx, bill)
}

func TestCheckout_ConcurrentSubmitBillsOnce(t *testing.T) {
	w := &slowWriter{MemoryBillWriter: NewMemoryBillWriter(zap.NewNop()), delay: 50 * time.Millisecond}
	svc, reg := setup(t, w, nil)
	fillCart(t, reg, "s1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), Request{SessionID: "s1", UserID: "u1"})
		}(i)
	}
	wg.Wait()

	succeeded, empty := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrEmptyCart):
			empty++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, empty)
	assert.Equal(t, 1, w.Len())
	assert.Empty(t, svc.sessions.locks)
}

func TestCheckout_OtherSessionsNotBlocked(t *testing.T) {
	w := &slowWriter{MemoryBillWriter: NewMemoryBillWriter(zap.NewNop()), delay: 20 * time.Millisecond}
	svc, reg := setup(t, w, nil)
	fillCart(t, reg, "s1")
	fillCart(t, reg, "s2")

	var wg sync.WaitGroup
	for _, session := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), Request{SessionID: session, UserID: "u-" + session})
			assert.NoError(t, err)
		}(session)
	}
	wg.Wait()

	assert.Equal(t, 2, w.Len())
}
