package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mahabub-bd/purepac-storefront/internal/api"
	"github.com/mahabub-bd/purepac-storefront/internal/cart"
	"github.com/mahabub-bd/purepac-storefront/internal/cartsync"
	"github.com/mahabub-bd/purepac-storefront/internal/checkout"
	"github.com/mahabub-bd/purepac-storefront/internal/coupon"
	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/mahabub-bd/purepac-storefront/internal/storage"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

// fakeBackend is a single-user REST backend.
type fakeBackend struct {
	m        sync.Mutex
	catalog  map[int64]domain.Product
	items    []domain.CartItem
	auth     []string
	applied  []string
	orders   []domain.OrderData
	keys     []string
	failCart bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{catalog: map[int64]domain.Product{
		7: {ID: 7, Name: "Vitamin C", Price: 150},
		8: {ID: 8, Name: "Zinc", Price: 80},
	}}
}

func (b *fakeBackend) routes() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	snapshot := func() domain.Cart {
		return domain.Cart{Items: append([]domain.CartItem{}, b.items...)}
	}
	track := func(r *http.Request) {
		b.auth = append(b.auth, r.Header.Get("Authorization"))
	}

	mux.HandleFunc("GET /api/v1/cart", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		track(r)
		if b.failCart {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		write(w, http.StatusOK, snapshot())
	})
	mux.HandleFunc("POST /api/v1/cart/items", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		track(r)
		var li domain.LineItem
		_ = json.NewDecoder(r.Body).Decode(&li)
		for i := range b.items {
			if b.items[i].Product.ID == li.ProductID {
				b.items[i].Quantity += li.Quantity
				write(w, http.StatusCreated, snapshot())
				return
			}
		}
		b.items = append(b.items, domain.CartItem{Product: b.catalog[li.ProductID], Quantity: li.Quantity})
		write(w, http.StatusCreated, snapshot())
	})
	mux.HandleFunc("PUT /api/v1/cart/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		track(r)
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		var body struct {
			Quantity int `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i := range b.items {
			if b.items[i].Product.ID == id {
				b.items[i].Quantity = body.Quantity
			}
		}
		write(w, http.StatusOK, snapshot())
	})
	mux.HandleFunc("DELETE /api/v1/cart", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		track(r)
		b.items = nil
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		p, ok := b.catalog[id]
		if !ok {
			write(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
			return
		}
		write(w, http.StatusOK, p)
	})
	mux.HandleFunc("POST /api/v1/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") != "SAVE20" {
			write(w, http.StatusBadRequest, map[string]string{"message": "Invalid coupon code"})
			return
		}
		write(w, http.StatusOK, domain.CouponValidation{Valid: true, Message: "Coupon is valid"})
	})
	mux.HandleFunc("POST /api/v1/coupons/apply", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		q := r.URL.Query()
		b.applied = append(b.applied, q.Get("code")+"@"+q.Get("amount"))
		if q.Get("code") != "SAVE20" {
			write(w, http.StatusBadRequest, map[string]string{"message": "Invalid coupon code"})
			return
		}
		write(w, http.StatusOK, domain.CouponApplication{DiscountedAmount: 280, DiscountValue: 20, CouponID: 9})
	})
	mux.HandleFunc("GET /api/v1/payment-methods", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, []domain.PaymentMethod{{ID: 5, Code: "cod", Name: "Cash on delivery"}})
	})
	mux.HandleFunc("GET /api/v1/shipping-methods", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, []domain.ShippingMethod{{ID: 2, Name: "Courier", Price: 60}})
	})
	mux.HandleFunc("POST /api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		defer b.m.Unlock()
		track(r)
		var order domain.OrderData
		_ = json.NewDecoder(r.Body).Decode(&order)
		b.orders = append(b.orders, order)
		b.keys = append(b.keys, r.Header.Get("Idempotency-Key"))
		write(w, http.StatusCreated, domain.Order{ID: 1001, OrderNo: "ORD-1001", TotalValue: order.TotalValue})
	})
	return mux
}

type testClient struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func (c *testClient) do(method, path string, body any, headers ...string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(data) > 0 {
		require.NoError(c.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func setupStorefront(t *testing.T) (*testClient, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	bsrv := httptest.NewServer(backend.routes())
	t.Cleanup(bsrv.Close)

	client, err := api.NewClient(bsrv.URL+"/api/v1", 5*time.Second)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	engine := cartsync.NewEngine(client, log)
	sessions, err := NewSessions(100, storage.NewMemory(), engine, coupon.NewService(client), log)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Cart:           NewCartHandler(sessions, client, 5*time.Second, log),
		Checkout:       NewCheckoutHandler(sessions, checkout.NewOrchestrator(client, log), 5*time.Second, log),
		JWTSecret:      testSecret,
		RequestTimeout: 5 * time.Second,
		Log:            log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}, backend
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func cartItems(view map[string]any) []any {
	c, _ := view["cart"].(map[string]any)
	items, _ := c["items"].([]any)
	return items
}

func TestHealth(t *testing.T) {
	c, _ := setupStorefront(t)
	status, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestGuestCart_AddUpdateRemove(t *testing.T) {
	c, backend := setupStorefront(t)

	status, view := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 2})
	require.Equal(t, http.StatusCreated, status)
	items := cartItems(view)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Vitamin C", item["product"].(map[string]any)["name"])
	assert.Equal(t, 300.0, view["totals"].(map[string]any)["subtotal"])

	status, view = c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, cartItems(view), 1, "session cookie keeps the guest cart")

	status, view = c.do(http.MethodPut, "/api/v1/cart/items/7", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, cartItems(view))

	status, body := c.do(http.MethodDelete, "/api/v1/cart/items/7", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "item_not_found", body["code"])

	assert.Empty(t, backend.auth, "guest cart never touches the server cart")
}

func TestAddItem_Validation(t *testing.T) {
	c, _ := setupStorefront(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"bad json", "not-an-object", "invalid_request"},
		{"no product", AddItemRequestDTO{Quantity: 1}, "invalid_product_id"},
		{"zero quantity", AddItemRequestDTO{ProductID: 7}, "invalid_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := c.do(http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	status, body := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 99, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", body["error"])
	assert.Equal(t, "not_found", body["code"])
}

func TestLogin_MergesGuestCartAndForwardsToken(t *testing.T) {
	c, backend := setupStorefront(t)
	backend.items = []domain.CartItem{{Product: backend.catalog[7], Quantity: 3}}

	status, _ := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 1})
	require.Equal(t, http.StatusCreated, status)
	status, _ = c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 8, Quantity: 2})
	require.Equal(t, http.StatusCreated, status)

	c.token = signToken(t, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()})
	status, view := c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)

	got := map[float64]float64{}
	for _, it := range cartItems(view) {
		m := it.(map[string]any)
		got[m["product"].(map[string]any)["id"].(float64)] = m["quantity"].(float64)
	}
	assert.Equal(t, map[float64]float64{7: 4, 8: 2}, got)

	backend.m.Lock()
	defer backend.m.Unlock()
	require.NotEmpty(t, backend.auth)
	for _, h := range backend.auth {
		assert.Equal(t, "Bearer "+c.token, h)
	}
}

func TestAuth_RejectsBadToken(t *testing.T) {
	c, _ := setupStorefront(t)

	wrong, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"}).SignedString([]byte("other"))
	require.NoError(t, err)

	for _, token := range []string{wrong, "garbage"} {
		c.token = token
		status, body := c.do(http.MethodGet, "/api/v1/cart", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "unauthorized", body["code"])
	}
}

func TestCoupon_ApplyReplaceAndReject(t *testing.T) {
	c, backend := setupStorefront(t)

	status, body := c.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: "SAVE20"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "empty_cart", body["code"])

	status, _ = c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 2})
	require.Equal(t, http.StatusCreated, status)

	status, body = c.do(http.MethodPost, "/api/v1/cart/coupon/validate", CouponRequestDTO{Code: "save20"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, view := c.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: " save20 "})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SAVE20", view["coupon"].(map[string]any)["code"])

	status, body = c.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: "X10"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid coupon code", body["error"])
	assert.Equal(t, "bad_request", body["code"])

	status, view = c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SAVE20", view["coupon"].(map[string]any)["code"], "failed apply keeps the coupon already applied")

	status, view = c.do(http.MethodDelete, "/api/v1/cart/coupon", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, view["coupon"])

	status, body = c.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_coupon_code", body["code"])

	backend.m.Lock()
	defer backend.m.Unlock()
	assert.Equal(t, []string{"SAVE20@300.00", "X10@300.00"}, backend.applied)
}

func TestCheckout_NoAddress(t *testing.T) {
	c, backend := setupStorefront(t)
	status, _ := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 1})
	require.Equal(t, http.StatusCreated, status)

	status, body := c.do(http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{
		ShippingMethodID:  "2",
		PaymentMethodCode: "cod",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "no_address_selected", body["code"])
	assert.Equal(t, "FAILED", body["attempt"].(map[string]any)["status"])
	assert.Empty(t, backend.orders)
}

func TestCheckout_PlacesOrderAndClearsCart(t *testing.T) {
	c, backend := setupStorefront(t)
	c.token = signToken(t, jwt.MapClaims{"user_id": 42})

	status, _ := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 2})
	require.Equal(t, http.StatusCreated, status)
	status, _ = c.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: "SAVE20"})
	require.Equal(t, http.StatusOK, status)

	status, body := c.do(http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{
		SelectedAddress:   &domain.Address{ID: 11, UserID: 42},
		ShippingMethodID:  "2",
		PaymentMethodCode: "cod",
	}, "Idempotency-Key", "order-key-1")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "COMPLETED", body["status"])
	assert.Equal(t, true, body["cartCleared"])

	backend.m.Lock()
	require.Len(t, backend.orders, 1)
	order := backend.orders[0]
	keys := backend.keys
	backend.m.Unlock()

	assert.Equal(t, []string{"order-key-1"}, keys)
	assert.Equal(t, int64(11), order.AddressID)
	require.NotNil(t, order.UserID)
	assert.Equal(t, int64(42), *order.UserID)
	assert.Equal(t, int64(5), order.PaymentMethodID)
	assert.Equal(t, int64(2), order.ShippingMethodID)
	require.NotNil(t, order.CouponID)
	assert.Equal(t, int64(9), *order.CouponID)
	assert.Equal(t, []domain.LineItem{{ProductID: 7, Quantity: 2}}, order.Items)
	assert.Equal(t, 340.0, order.TotalValue)

	status, view := c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, cartItems(view))
	assert.Nil(t, view["coupon"])
}

func TestSessions_EvictedSessionReloadsGuestCart(t *testing.T) {
	log, _ := test.NewNullLogger()
	kv := storage.NewMemory()
	engine := cartsync.NewEngine(nil, log)
	sessions, err := NewSessions(1, kv, engine, coupon.NewService(nil), log)
	require.NoError(t, err)

	ctx := t.Context()
	p, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, p.AddItem(ctx, domain.Product{ID: 7, Price: 1}, 3))

	again, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, p, again)

	_, err = sessions.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Len())

	reloaded, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, p, reloaded)
	assert.Equal(t, 3, reloaded.Cart().Items[0].Quantity)
}

func TestUserIDFromToken(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		secret  []byte
		signer  []byte
		want    int64
		wantErr bool
	}{
		{"sub string", jwt.MapClaims{"sub": "42"}, testSecret, testSecret, 42, false},
		{"user_id number", jwt.MapClaims{"user_id": 7}, testSecret, testSecret, 7, false},
		{"unverified without secret", jwt.MapClaims{"sub": "5"}, nil, []byte("anything"), 5, false},
		{"wrong secret", jwt.MapClaims{"sub": "42"}, testSecret, []byte("other"), 0, true},
		{"expired", jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret, testSecret, 0, true},
		{"no user claim", jwt.MapClaims{"email": "a@b.c"}, testSecret, testSecret, 0, true},
		{"non-numeric sub", jwt.MapClaims{"sub": "alice"}, testSecret, testSecret, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString(tt.signer)
			require.NoError(t, err)

			got, err := userIDFromToken(raw, tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{cartsync.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{cart.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
		{checkout.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
		{&api.Error{StatusCode: 409, Message: "Out of stock"}, http.StatusConflict, "conflict"},
		{&api.Error{StatusCode: 500, Message: "HTTP error! Status: 500"}, http.StatusInternalServerError, "internal_server_error"},
		{io.ErrUnexpectedEOF, http.StatusBadGateway, "upstream_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestLogin_MergeRetriedAfterBackendFailure(t *testing.T) {
	c, backend := setupStorefront(t)

	status, _ := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 8, Quantity: 1})
	require.Equal(t, http.StatusCreated, status)

	backend.m.Lock()
	backend.failCart = true
	backend.m.Unlock()

	c.token = signToken(t, jwt.MapClaims{"sub": "42"})
	status, view := c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, cartItems(view), 1)
	assert.Empty(t, backend.items)

	backend.m.Lock()
	backend.failCart = false
	backend.m.Unlock()

	status, view = c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, cartItems(view), 1)
	backend.m.Lock()
	defer backend.m.Unlock()
	require.Len(t, backend.items, 1)
	assert.Equal(t, 1, backend.items[0].Quantity)
}

func TestCart_SecondBrowserSeesServerChanges(t *testing.T) {
	a, backend := setupStorefront(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b := &testClient{t: t, base: a.base, http: &http.Client{Jar: jar}}

	token := signToken(t, jwt.MapClaims{"sub": "42"})
	a.token, b.token = token, token

	status, view := b.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, cartItems(view))

	status, _ = a.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 7, Quantity: 2})
	require.Equal(t, http.StatusCreated, status)

	status, view = b.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cartItems(view), 1)
	assert.Equal(t, 2.0, cartItems(view)[0].(map[string]any)["quantity"])

	status, _ = b.do(http.MethodPost, "/api/v1/cart/coupon", CouponRequestDTO{Code: "SAVE20"})
	require.Equal(t, http.StatusOK, status)

	backend.m.Lock()
	defer backend.m.Unlock()
	assert.Equal(t, []string{"SAVE20@300.00"}, backend.applied)
}

// slowStorage holds reads of the sessions under prefix until gate is closed.
type slowStorage struct {
	storage.Storage
	prefix  string
	started chan struct{}
	gate    chan struct{}
}

func (s *slowStorage) Get(ctx context.Context, key string) (string, error) {
	if strings.HasPrefix(key, s.prefix) {
		select {
		case s.started <- struct{}{}:
		default:
		}
		<-s.gate
	}
	return s.Storage.Get(ctx, key)
}

func TestSessions_SlowInitDoesNotBlockOtherSessions(t *testing.T) {
	log, _ := test.NewNullLogger()
	kv := &slowStorage{
		Storage: storage.NewMemory(),
		prefix:  "session:slow:",
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	sessions, err := NewSessions(10, kv, cartsync.NewEngine(nil, log), coupon.NewService(nil), log)
	require.NoError(t, err)
	ctx := t.Context()

	slow := make(chan *cart.Provider, 2)
	for i := 0; i < 2; i++ {
		go func() {
			p, err := sessions.Get(ctx, "slow")
			assert.NoError(t, err)
			slow <- p
		}()
	}
	<-kv.started

	fast := make(chan error, 1)
	go func() {
		_, err := sessions.Get(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("a new session waited on another session's init")
	}

	close(kv.gate)
	first, second := <-slow, <-slow
	assert.Same(t, first, second)
	assert.Equal(t, 2, sessions.Len())
}
