package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type account struct {
	user     domain.User
	password string
	token    string
}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeBackend is an in-memory stand-in for the storefront REST API
type fakeBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account // by email
	products  []domain.Product
	orders    []domain.Order
	requests  []recordedRequest
	failures  map[string]int // "METHOD /path" -> status
	nextOrder int

	// onCreateOrder runs when POST /orders arrives, before the order is stored
	onCreateOrder func()
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		accounts:  make(map[string]*account),
		failures:  make(map[string]int),
		nextOrder: 100,
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Post("/auth/login", b.login)
	r.Post("/auth/register", b.register)
	r.Get("/auth/profile", b.profile)
	r.Get("/products", b.listProducts)
	r.Get("/products/{id}", b.getProduct)
	r.Post("/products", b.createProduct)
	r.Put("/products/{id}", b.updateProduct)
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

func (b *fakeBackend) addAccount(id, email string, role domain.Role) *account {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc := &account{
		user:     domain.User{ID: id, Name: "User " + id, Email: email, Role: role},
		password: "secret1",
		token:    "token-" + id,
	}
	b.accounts[email] = acc
	return acc
}

// revoke makes the backend reject the account's current token
func (b *fakeBackend) revoke(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email].token = "revoked"
}

func (b *fakeBackend) addProduct(id, name, price string, stock int) domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	b.products = append(b.products, p)
	return p
}

func (b *fakeBackend) addOrder(order domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, order)
}

func (b *fakeBackend) beforeCreateOrder(hook func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCreateOrder = hook
}

func (b *fakeBackend) fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

func (b *fakeBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

func (b *fakeBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.requests))
	for i, r := range b.requests {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

func (b *fakeBackend) lastBody(method, path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Method == method && b.requests[i].Path == path {
			return b.requests[i].Body
		}
	}
	return ""
}

func (b *fakeBackend) order(id string) (domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (b *fakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		status, failing := b.failures[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if failing {
			http.Error(w, "<html>backend error</html>", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) caller(r *http.Request) (*account, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if acc.token == token {
			return acc, true
		}
	}
	return nil, false
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	json.NewDecoder(r.Body).Decode(&creds)

	b.mu.Lock()
	acc, ok := b.accounts[creds.Email]
	b.mu.Unlock()

	if !ok || acc.password != creds.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, domain.AuthResult{AccessToken: acc.token, User: acc.user})
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var data domain.Registration
	json.NewDecoder(r.Body).Decode(&data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[data.Email]; exists {
		http.Error(w, "exists", http.StatusConflict)
		return
	}
	id := fmt.Sprintf("u%d", len(b.accounts)+1)
	acc := &account{
		user:     domain.User{ID: id, Name: data.Name, Email: data.Email, Role: domain.RoleClient},
		password: data.Password,
		token:    "token-" + id,
	}
	b.accounts[data.Email] = acc
	writeJSON(w, http.StatusCreated, acc.user)
}

func (b *fakeBackend) profile(w http.ResponseWriter, r *http.Request) {
	acc, ok := b.caller(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, acc.user)
}

func (b *fakeBackend) listProducts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.products)
}

func (b *fakeBackend) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) createProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	json.NewDecoder(r.Body).Decode(&input)

	b.mu.Lock()
	defer b.mu.Unlock()

	p := domain.Product{
		ID:          fmt.Sprintf("p%d", len(b.products)+1),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
	}
	b.products = append(b.products, p)
	writeJSON(w, http.StatusCreated, p)
}

func (b *fakeBackend) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input domain.ProductInput
	json.NewDecoder(r.Body).Decode(&input)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.products {
		if b.products[i].ID == id {
			b.products[i].Name = input.Name
			b.products[i].Description = input.Description
			b.products[i].Price = input.Price
			b.products[i].Stock = input.Stock
			writeJSON(w, http.StatusOK, b.products[i])
			return
		}
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.products {
		if b.products[i].ID == id {
			b.products = append(b.products[:i], b.products[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) listOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.orders)
}

func (b *fakeBackend) getOrder(w http.ResponseWriter, r *http.Request) {
	if o, ok := b.order(chi.URLParam(r, "id")); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) createOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	hook := b.onCreateOrder
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	var input domain.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextOrder++
	order := domain.Order{
		ID:        fmt.Sprintf("%d", b.nextOrder),
		UserID:    input.UserID,
		Status:    domain.OrderStatusPending,
		Address:   input.Address,
		Phone:     input.Phone,
		Note:      input.Note,
		CreatedAt: time.Now(),
	}
	for _, item := range input.Items {
		price := decimal.Zero
		for _, p := range b.products {
			if p.ID == item.ProductID {
				price = p.Price
			}
		}
		order.OrderItems = append(order.OrderItems, domain.OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}
	order.Total = order.ComputedTotal()
	b.orders = append(b.orders, order)

	writeJSON(w, http.StatusCreated, order)
}

func (b *fakeBackend) patchOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch domain.OrderPatch
	json.NewDecoder(r.Body).Decode(&patch)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID == id {
			if patch.Status != "" {
				b.orders[i].Status = patch.Status
			}
			writeJSON(w, http.StatusOK, b.orders[i])
			return
		}
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID == id {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

// newTestSessions wires a SessionService against the fake backend
func newTestSessions(t *testing.T, b *fakeBackend, storage repository.Storage) *sessionService {
	t.Helper()

	if storage == nil {
		storage = repository.NewMemoryStorage()
	}
	svc := NewSessionService(SessionOptions{
		BaseURL:     b.server.URL,
		HTTPClient:  b.server.Client(),
		Storage:     storage,
		IdleTimeout: time.Hour,
	}, cart.NewRegistry(), zap.NewNop())
	return svc.(*sessionService)
}

// signIn opens a session and logs the account in
func signIn(t *testing.T, svc SessionService, sessionID string, acc *account) *Session {
	t.Helper()

	sess, err := svc.Session(t.Context(), sessionID)
	require.NoError(t, err)

	_, err = svc.Login(t.Context(), sess, domain.Credentials{Email: acc.user.Email, Password: acc.password})
	require.NoError(t, err)
	return sess
}
