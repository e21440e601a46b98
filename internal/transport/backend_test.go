package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// backend is an in-memory stand-in for the storefront REST API
type backend struct {
	server *httptest.Server

	mu       sync.Mutex
	users    map[string]domain.User // by token
	products []domain.Product
	orders   []domain.Order
	requests []string
	failures map[string]int // "METHOD /path" -> status
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{
		users:    make(map[string]domain.User),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Post("/auth/login", b.login)
	r.Post("/auth/register", b.register)
	r.Get("/auth/profile", b.profile)
	r.Get("/products", b.listProducts)
	r.Get("/products/{id}", b.getProduct)
	r.Post("/products", b.createProduct)
	r.Delete("/products/{id}", b.deleteProduct)
	r.Get("/orders", b.listOrders)
	r.Get("/orders/{id}", b.getOrder)
	r.Post("/orders", b.createOrder)
	r.Patch("/orders/{id}", b.patchOrder)
	r.Delete("/orders/{id}", b.deleteOrder)

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

// addUser registers an account whose password is "secret1"
func (b *backend) addUser(id, email string, role domain.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users["token-"+id] = domain.User{ID: id, Name: "User " + id, Email: email, Role: role}
}

func (b *backend) addProduct(id, name, price string, stock int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products = append(b.products, domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock})
}

func (b *backend) addOrder(order domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, order)
}

func (b *backend) fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

func (b *backend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *backend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

func (b *backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.requests = append(b.requests, key)
		status, failing := b.failures[key]
		b.mu.Unlock()

		if failing {
			http.Error(w, "backend error", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *backend) reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *backend) caller(r *http.Request) (domain.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	return user, ok
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	json.NewDecoder(r.Body).Decode(&creds)

	b.mu.Lock()
	defer b.mu.Unlock()
	for token, user := range b.users {
		if user.Email == creds.Email && creds.Password == "secret1" {
			b.reply(w, http.StatusOK, domain.AuthResult{AccessToken: token, User: user})
			return
		}
	}
	http.Error(w, "invalid credentials", http.StatusUnauthorized)
}

func (b *backend) register(w http.ResponseWriter, r *http.Request) {
	var data domain.Registration
	json.NewDecoder(r.Body).Decode(&data)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, user := range b.users {
		if user.Email == data.Email {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
	}
	id := fmt.Sprintf("u%d", len(b.users)+1)
	user := domain.User{ID: id, Name: data.Name, Email: data.Email, Role: domain.RoleClient}
	b.users["token-"+id] = user
	b.reply(w, http.StatusCreated, user)
}

func (b *backend) profile(w http.ResponseWriter, r *http.Request) {
	user, ok := b.caller(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.reply(w, http.StatusOK, user)
}

func (b *backend) listProducts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reply(w, http.StatusOK, b.products)
}

func (b *backend) getProduct(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if p.ID == chi.URLParam(r, "id") {
			b.reply(w, http.StatusOK, p)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *backend) createProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	json.NewDecoder(r.Body).Decode(&input)

	b.mu.Lock()
	defer b.mu.Unlock()
	p := domain.Product{ID: fmt.Sprintf("p%d", len(b.products)+1), Name: input.Name, Price: input.Price, Stock: input.Stock}
	b.products = append(b.products, p)
	b.reply(w, http.StatusCreated, p)
}

func (b *backend) deleteProduct(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.products {
		if p.ID == chi.URLParam(r, "id") {
			b.products = append(b.products[:i], b.products[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *backend) listOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reply(w, http.StatusOK, b.orders)
}

func (b *backend) getOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.ID == chi.URLParam(r, "id") {
			b.reply(w, http.StatusOK, o)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *backend) createOrder(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateOrderInput
	json.NewDecoder(r.Body).Decode(&input)

	b.mu.Lock()
	defer b.mu.Unlock()
	order := domain.Order{
		ID:        fmt.Sprintf("%d", 100+len(b.orders)),
		UserID:    input.UserID,
		Status:    domain.OrderStatusPending,
		Address:   input.Address,
		Phone:     input.Phone,
		CreatedAt: time.Now(),
	}
	for _, item := range input.Items {
		for _, p := range b.products {
			if p.ID == item.ProductID {
				order.OrderItems = append(order.OrderItems, domain.OrderItem{ProductID: p.ID, Quantity: item.Quantity, Price: p.Price})
			}
		}
	}
	order.Total = order.ComputedTotal()
	b.orders = append(b.orders, order)
	b.reply(w, http.StatusCreated, order)
}

func (b *backend) patchOrder(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrderPatch
	json.NewDecoder(r.Body).Decode(&patch)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID == chi.URLParam(r, "id") {
			b.orders[i].Status = patch.Status
			b.reply(w, http.StatusOK, b.orders[i])
			return
		}
	}
	http.NotFound(w, r)
}

func (b *backend) deleteOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.orders {
		if o.ID == chi.URLParam(r, "id") {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

// newRouter assembles the API the way the server does, minus telemetry
func newRouter(sessions service.SessionService, logger *zap.Logger) http.Handler {
	catalog := service.NewCatalogService(logger)

	r := chi.NewRouter()
	r.Use(middleware.ErrorHandlingMiddleware(logger))
	r.Use(middleware.SessionMiddleware(middleware.SessionConfig{
		CookieName: "sf_session",
		Secret:     "test-session-secret",
		TTL:        time.Hour,
	}, logger))
	r.Use(middleware.LoadSession(sessions, logger))
	r.Use(middleware.RequireJSON(logger))

	passthrough := func(next http.Handler) http.Handler { return next }
	NewAuthHandler(sessions, logger).RegisterRoutes(r, passthrough)
	NewProductHandler(catalog, logger).RegisterRoutes(r)
	NewCartHandler(catalog, service.NewCheckoutService(logger), logger).RegisterRoutes(r)
	NewOrderHandler(service.NewOrderService(logger), logger).RegisterRoutes(r)
	NewDashboardHandler(service.NewDashboardService(logger), logger).RegisterRoutes(r)
	return r
}

// app is a running BFF plus a cookie-keeping browser
type app struct {
	backend *backend
	server  *httptest.Server
	browser *http.Client
}

func newApp(t *testing.T) *app {
	t.Helper()

	b := newBackend(t)
	b.addUser("a1", "admin@example.com", domain.RoleAdmin)
	b.addUser("u1", "ada@example.com", domain.RoleClient)
	b.addProduct("A", "Honey jar", "10", 5)
	b.addProduct("B", "Candle", "3", 10)

	logger := zap.NewNop()
	sessions := service.NewSessionService(service.SessionOptions{
		BaseURL:     b.server.URL,
		HTTPClient:  b.server.Client(),
		Storage:     repository.NewMemoryStorage(),
		IdleTimeout: time.Hour,
	}, cart.NewRegistry(), logger)

	server := httptest.NewServer(newRouter(sessions, logger))
	t.Cleanup(server.Close)

	return &app{backend: b, server: server, browser: newBrowser(t)}
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// do sends a request from the app's browser and decodes a JSON reply into out
func (a *app) do(t *testing.T, method, path string, body, out interface{}) *http.Response {
	t.Helper()
	return a.doWith(t, a.browser, method, path, body, out)
}

func (a *app) doWith(t *testing.T, browser *http.Client, method, path string, body, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := browser.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (a *app) login(t *testing.T, email string) {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/auth/login", domain.Credentials{Email: email, Password: "secret1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a.backend.reset()
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Details struct {
			Redirect         string                  `json:"redirect"`
			ValidationErrors []validation.FieldError `json:"validation_errors"`
		} `json:"details"`
	} `json:"error"`
}

func (e errorBody) fields() []string {
	out := make([]string, len(e.Error.Details.ValidationErrors))
	for i, f := range e.Error.Details.ValidationErrors {
		out[i] = f.Field
	}
	return out
}
