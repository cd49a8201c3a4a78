package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/checkout"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/store"
	"github.com/vhpx/pleasebuyus-sub000/internal/wishlist"
)

// outageStore fails every read while down is set.
type outageStore struct {
	*store.MemoryStore
	down atomic.Bool
}

func (o *outageStore) Get(ctx context.Context, key string) (string, error) {
	if o.down.Load() {
		return "", errors.New("connection reset by peer")
	}
	return o.MemoryStore.Get(ctx, key)
}

type testServer struct {
	handler http.Handler
	store   *outageStore
	carts   *ledger.Registry
	bills   *checkout.MemoryBillWriter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cat, err := catalog.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, cat.RunMigrations())
	t.Cleanup(func() { cat.Close() })

	st := &outageStore{MemoryStore: store.NewMemoryStore()}
	carts := ledger.NewRegistry(st, zap.NewNop())
	bills := checkout.NewMemoryBillWriter(zap.NewNop())

	router := NewRouter(RouterConfig{RequestTimeout: 5 * time.Second, MaxBodySize: 1024}, Services{
		Carts:     carts,
		Wishlists: wishlist.NewService(st, zap.NewNop()),
		Catalog:   cat,
		Checkout:  checkout.NewService(carts, bills, nil, checkout.DefaultOptions(), zap.NewNop()),
	}, zap.NewNop())

	return &testServer{handler: router, store: st, carts: carts, bills: bills}
}

type call struct {
	method  string
	path    string
	body    string
	session string
	user    string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if c.body != "" {
		body = bytes.NewReader([]byte(c.body))
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponseDTO {
	t.Helper()
	var resp CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/health"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSession_IssuedWhenMissing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/cart"})

	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(SessionHeader)
	assert.NotEmpty(t, session)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, session, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	resp := decodeCart(t, rec)
	assert.Equal(t, session, resp.SessionID)
	assert.Equal(t, 0, resp.TotalProducts)
	assert.Empty(t, resp.Lines)
}

func TestSession_FromCookie(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-cookie", rec.Header().Get(SessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestGetCart_AnonymousVisitsAreNotKept(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 200; i++ {
		rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/cart"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 0, s.carts.Len())
	assert.Equal(t, 0, s.store.Len())
}

func TestCart_StoreOutageIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: `{"product_id":"sku1","quantity":3}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	s.carts.Forget("s1")

	s.store.down.Store(true)
	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: `{"product_id":"sku2"}`})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, rec).Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist", session: "s1", body: `{"product_id":"sku4"}`})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.store.down.Store(false)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "sku1", cart.Lines[0].ProductID)
	assert.Equal(t, 3, cart.TotalProducts)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)
	const session = "s1"

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session,
		body: `{"product_id":"sku1","quantity":1}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session,
		body: `{"product_id":"sku2","quantity":1}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session,
		body: `{"product_id":"sku1","quantity":2}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeCart(t, rec)
	assert.Equal(t, 4, resp.TotalProducts)
	assert.Equal(t, "79.96", resp.Total.StringFixed(2))
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "sku1", resp.Lines[0].ProductID)
	assert.Equal(t, 3, resp.Lines[0].Quantity)
	require.Len(t, resp.Outlets, 1)
	assert.Equal(t, "outlet-tech", resp.Outlets[0].OutletID)

	rec = s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/sku1", session: session,
		body: `{"quantity":1}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "59.98", decodeCart(t, rec).Total.StringFixed(2))

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/v1/cart/items/sku2", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	assert.Equal(t, 1, resp.TotalProducts)

	// persisted under the session key
	payload, err := s.store.Get(t.Context(), ledger.Key(session))
	require.NoError(t, err)
	assert.Contains(t, payload, `"sku1"`)
	assert.NotContains(t, payload, `"sku2"`)

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/v1/cart", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeCart(t, rec).TotalProducts)
}

func TestAddItem_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"bad json", `{`, http.StatusBadRequest, "invalid_request"},
		{"missing product", `{"quantity":1}`, http.StatusBadRequest, "validation_failed"},
		{"too many", `{"product_id":"sku1","quantity":100}`, http.StatusBadRequest, "validation_failed"},
		{"negative", `{"product_id":"sku1","quantity":-1}`, http.StatusBadRequest, "invalid_quantity"},
		{"unknown product", `{"product_id":"nope","quantity":1}`, http.StatusNotFound, "product_not_found"},
		{"body too large", `{"product_id":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: tt.body})

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestAddItem_NoMerge(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1",
		body: `{"product_id":"sku1"}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decodeCart(t, rec).TotalProducts)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1",
		body: `{"product_id":"sku1","quantity":1,"merge":false}`})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_in_cart", decodeError(t, rec).Code)
}

func TestUpdateQuantity_NotInCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/sku1", session: "s1", body: `{"quantity":2}`})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_in_cart", decodeError(t, rec).Code)
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	s := newTestServer(t)
	s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: `{"product_id":"sku1","quantity":2}`})

	rec := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/sku1", session: "s1", body: `{"quantity":0}`})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Lines)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/products"})
	require.Equal(t, http.StatusOK, rec.Code)
	var all ProductsResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all.Products, 5)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/products?outlet_id=outlet-home"})
	require.Equal(t, http.StatusOK, rec.Code)
	var home ProductsResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&home))
	assert.Len(t, home.Products, 2)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/products/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWishlistFlow(t *testing.T) {
	s := newTestServer(t)
	const session = "s1"

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist", session: session, body: `{"product_id":"sku4"}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	var wl WishlistResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&wl))
	require.Len(t, wl.Items, 1)
	assert.Equal(t, "Coffee Mug", wl.Items[0].Name)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/sku4/move", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Equal(t, 1, cart.TotalProducts)
	assert.Equal(t, "outlet-home", cart.Lines[0].OutletID)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/wishlist", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	wl = WishlistResponseDTO{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&wl))
	assert.Empty(t, wl.Items)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/sku4/move", session: session})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/v1/wishlist/sku4", session: session})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout(t *testing.T) {
	s := newTestServer(t)
	const session = "s1"

	s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session, body: `{"product_id":"sku1","quantity":3}`})
	s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session, body: `{"product_id":"sku2","quantity":1}`})

	// anonymous shoppers keep their cart but cannot check out
	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout", session: session})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout", session: session, user: "u1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CheckoutResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.BillID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "79.96", resp.Total.StringFixed(2))
	assert.Len(t, resp.Lines, 2)
	assert.Equal(t, 1, s.bills.Len())

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: session})
	assert.Equal(t, 0, decodeCart(t, rec).TotalProducts)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout", session: session, user: "u1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "empty_cart", decodeError(t, rec).Code)
}
