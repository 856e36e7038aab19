package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/amerta-coffee/amerta-coffee-api/internal/address"
	"github.com/amerta-coffee/amerta-coffee-api/internal/cart"
	checkoutsvc "github.com/amerta-coffee/amerta-coffee-api/internal/checkout"
	"github.com/amerta-coffee/amerta-coffee-api/internal/orders"
	pkgAuth "github.com/amerta-coffee/amerta-coffee-api/pkg/auth"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/pagination"
	pkgredis "github.com/amerta-coffee/amerta-coffee-api/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memStore struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrMiss
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "mem:idempotency:" + scope + ":" + id
}

func (m *memStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[scope]++
	return m.counters[scope] <= limit, m.counters[scope], nil
}

type stubCart struct{}

func (stubCart) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*cart.View, error) {
	return &cart.View{UserID: userID, Items: []cart.ItemView{}, Total: decimal.Zero}, nil
}

func (stubCart) UpsertItem(ctx context.Context, userID uuid.UUID, input cart.UpsertItemInput) (*cart.UpsertResult, error) {
	return &cart.UpsertResult{Action: cart.ActionCreated}, nil
}

func (stubCart) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*cart.ItemView, error) {
	return &cart.ItemView{ProductID: productID}, nil
}

type countingCheckout struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCheckout) Checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*checkoutsvc.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return &checkoutsvc.Result{
		Order: orders.OrderDTO{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending, ShippingAddressID: shippingAddressID},
		Transaction: orders.TransactionDTO{
			NoInvoice: "INV-20261015-ZZ0001",
			Status:    enums.TransactionStatusPending,
		},
	}, nil
}

type stubOrders struct{}

func (stubOrders) Get(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, UserID: userID}, nil
}

func (stubOrders) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

type stubAddresses struct{}

func (stubAddresses) Create(ctx context.Context, userID uuid.UUID, input address.CreateInput) (*address.DTO, error) {
	return &address.DTO{ID: uuid.New(), Label: input.Label}, nil
}

func (stubAddresses) List(ctx context.Context, userID uuid.UUID) ([]address.DTO, error) {
	return []address.DTO{}, nil
}

type routerFixture struct {
	handler  http.Handler
	checkout *countingCheckout
	store    *memStore
	token    string
	reg      *prometheus.Registry
}

func newRouterFixture(t *testing.T, mutate func(*config.Config)) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "amerta", ExpirationMinutes: 5},
		Checkout: config.CheckoutConfig{
			IdempotencyTTL:  time.Hour,
			RateLimit:       10,
			RateLimitWindow: time.Minute,
		},
		FeatureFlags: config.FeatureFlagsConfig{Metrics: true},
	}
	if mutate != nil {
		mutate(cfg)
	}

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	reg := prometheus.NewRegistry()
	checkout := &countingCheckout{}
	store := newMemStore()
	handler := NewRouter(cfg, nil, stubPinger{}, store, reg, metrics.NewServer(reg), Services{
		Cart:     stubCart{},
		Checkout: checkout,
		Orders:   stubOrders{},
		Address:  stubAddresses{},
	})
	return routerFixture{handler: handler, checkout: checkout, store: store, token: token, reg: reg}
}

func (f routerFixture) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+f.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutesArePublic(t *testing.T) {
	f := newRouterFixture(t, nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAPIRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t, nil)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/addresses"},
	} {
		resp := httptest.NewRecorder()
		f.handler.ServeHTTP(resp, httptest.NewRequest(route.method, route.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", route.method, route.path, resp.Code)
		}
	}
}

func TestAuthenticatedRoutesResolve(t *testing.T) {
	f := newRouterFixture(t, nil)
	productID := uuid.NewString()

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/v1/cart", "", http.StatusOK},
		{http.MethodPost, "/api/v1/cart/items", `{"product_id":"` + productID + `","quantity":1}`, http.StatusCreated},
		{http.MethodPut, "/api/v1/cart/items", `{"product_id":"` + productID + `","quantity":3}`, http.StatusCreated},
		{http.MethodDelete, "/api/v1/cart/items/" + productID, "", http.StatusOK},
		{http.MethodGet, "/api/v1/orders", "", http.StatusOK},
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString(), "", http.StatusOK},
		{http.MethodGet, "/api/v1/addresses", "", http.StatusOK},
	}
	for _, tc := range cases {
		var body io.Reader
		if tc.body != "" {
			body = strings.NewReader(tc.body)
		}
		resp := f.do(t, tc.method, tc.path, body, nil)
		if resp.Code != tc.status {
			t.Fatalf("%s %s: expected %d got %d body=%s", tc.method, tc.path, tc.status, resp.Code, resp.Body.String())
		}
	}
}

func TestCheckoutRequiresIdempotencyKeyAndReplays(t *testing.T) {
	f := newRouterFixture(t, nil)
	body := `{"shipping_address_id":"` + uuid.NewString() + `"}`

	resp := f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.Code)
	}

	headers := map[string]string{"Idempotency-Key": "checkout-1"}
	first := f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", first.Code, first.Body.String())
	}
	second := f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs")
	}
	if f.checkout.calls != 1 {
		t.Fatalf("expected one checkout call, got %d", f.checkout.calls)
	}
}

func TestCheckoutRateLimited(t *testing.T) {
	f := newRouterFixture(t, func(cfg *config.Config) {
		cfg.Checkout.RateLimit = 1
	})
	body := `{"shipping_address_id":"` + uuid.NewString() + `"}`

	resp := f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), map[string]string{"Idempotency-Key": "a"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	resp = f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), map[string]string{"Idempotency-Key": "b"})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimitedCheckoutIsNotReplayed(t *testing.T) {
	f := newRouterFixture(t, func(cfg *config.Config) {
		cfg.Checkout.RateLimit = 1
	})
	body := `{"shipping_address_id":"` + uuid.NewString() + `"}`

	resp := f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), map[string]string{"Idempotency-Key": "a"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	resp = f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), map[string]string{"Idempotency-Key": "b"})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}

	// next window
	f.store.mu.Lock()
	f.store.counters = map[string]int64{}
	f.store.mu.Unlock()

	resp = f.do(t, http.MethodPost, "/api/v1/checkout", strings.NewReader(body), map[string]string{"Idempotency-Key": "b"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected retry to check out, got %d body=%s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("retry after 429 must not be replayed")
	}
	if f.checkout.calls != 2 {
		t.Fatalf("expected two checkout calls, got %d", f.checkout.calls)
	}
}

func TestMetricsEndpointToggle(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.do(t, http.MethodGet, "/api/v1/cart", nil, nil)

	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "amerta_http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}

	off := newRouterFixture(t, func(cfg *config.Config) {
		cfg.FeatureFlags.Metrics = false
	})
	resp = httptest.NewRecorder()
	off.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics disabled, got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newRouterFixture(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
