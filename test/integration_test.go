//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acme/storefront/internal/accounts"
	"github.com/acme/storefront/internal/cart"
	"github.com/acme/storefront/internal/catalog"
	"github.com/acme/storefront/internal/domain"
	"github.com/acme/storefront/internal/httpx"
	"github.com/acme/storefront/internal/messaging"
	"github.com/acme/storefront/internal/orders"
	"github.com/acme/storefront/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerPrincipal(ctx context.Context, t *testing.T, repo *accounts.UserRepository, email string, role domain.Role) domain.Principal {
	t.Helper()

	user, err := repo.Create(ctx, accounts.NewUser{
		Email:        email,
		PasswordHash: "$2a$10$not.a.real.hash.but.never.compared",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return domain.Principal{ID: user.ID, Email: user.Email, Role: role}
}

func createProduct(ctx context.Context, t *testing.T, repo *catalog.Repository, seller domain.Principal, name string, priceCents int64) *domain.Product {
	t.Helper()

	product := &domain.Product{Name: name, PriceCents: priceCents, SellerID: seller.ID}
	if err := repo.CreateProduct(ctx, product); err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return product
}

func TestRegistrationAndLogin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	redisURL, cleanupRedis := SetupRedis(ctx, t)
	defer cleanupRedis()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	sessions := accounts.NewSessionStore(redisClient)
	handler := accounts.NewHandler(accounts.NewUserRepository(db), sessions, discardLogger())

	register := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/register/customer", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.HandleRegisterCustomer(rec, req)
		return rec
	}

	rec := register(`{"email": "alice@example.com", "password": "correct-horse", "first_name": "Alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var auth struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&auth); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	if auth.Token == "" {
		t.Fatal("expected a session token")
	}
	if !auth.User.IsCustomer || auth.User.IsSeller {
		t.Fatalf("unexpected role flags: %+v", auth.User)
	}

	principal, err := sessions.Resolve(ctx, auth.Token)
	if err != nil {
		t.Fatalf("failed to resolve issued token: %v", err)
	}
	if principal.ID != auth.User.ID {
		t.Fatalf("token resolves to %s, expected %s", principal.ID, auth.User.ID)
	}

	rec = register(`{"email": "alice@example.com", "password": "another-pass"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate email, got %d: %s", rec.Code, rec.Body.String())
	}

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.HandleLogin(rec, req)
		return rec
	}

	rec = login(`{"email": "alice@example.com", "password": "correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on login, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = login(`{"email": "alice@example.com", "password": "wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for wrong password, got %d: %s", rec.Code, rec.Body.String())
	}

	auth2 := httpx.NewAuthenticator(sessions, discardLogger())
	logout := auth2.Require(handler.HandleLogout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	rec = httptest.NewRecorder()
	logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on logout, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := sessions.Resolve(ctx, auth.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	rec = httptest.NewRecorder()
	logout(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 after logout, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCartUpsertKeepsOneRowPerProduct(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	usersRepo := accounts.NewUserRepository(db)
	seller := registerPrincipal(ctx, t, usersRepo, "seller@example.com", domain.RoleSeller)
	customer := registerPrincipal(ctx, t, usersRepo, "buyer@example.com", domain.RoleCustomer)

	product := createProduct(ctx, t, catalog.NewRepository(db), seller, "Widget", 1000)

	cartRepo := cart.NewRepository(db)
	first, err := cartRepo.Upsert(ctx, customer, product.ID, 2)
	if err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	second, err := cartRepo.Upsert(ctx, customer, product.ID, 5)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same entry id, got %s and %s", first.ID, second.ID)
	}

	entries, err := cartRepo.ListEntries(ctx, customer)
	if err != nil {
		t.Fatalf("failed to list cart: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 cart entry, got %d", len(entries))
	}
	if entries[0].Quantity != 5 {
		t.Errorf("expected quantity overwritten to 5, got %d", entries[0].Quantity)
	}
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	usersRepo := accounts.NewUserRepository(db)
	seller := registerPrincipal(ctx, t, usersRepo, "seller@example.com", domain.RoleSeller)
	customer := registerPrincipal(ctx, t, usersRepo, "buyer@example.com", domain.RoleCustomer)

	catalogRepo := catalog.NewRepository(db)
	widget := createProduct(ctx, t, catalogRepo, seller, "Widget", 1000)
	gadget := createProduct(ctx, t, catalogRepo, seller, "Gadget", 500)

	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Upsert(ctx, customer, widget.ID, 2); err != nil {
		t.Fatalf("failed to fill cart: %v", err)
	}
	if _, err := cartRepo.Upsert(ctx, customer, gadget.ID, 1); err != nil {
		t.Fatalf("failed to fill cart: %v", err)
	}

	ordersRepo := orders.NewOrderRepository(db)
	handler := orders.NewHandler(ordersRepo, nil, discardLogger())

	checkout := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req = req.WithContext(httpx.WithPrincipal(req.Context(), customer))
		rec := httptest.NewRecorder()
		handler.HandleCheckout(rec, req)
		return rec
	}

	rec := checkout()
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode checkout response: %v", err)
	}
	if resp.Message != "Checkout successful" {
		t.Errorf("unexpected message: %q", resp.Message)
	}

	order, err := ordersRepo.GetByID(ctx, customer, resp.OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected status pending, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.TotalCents() != 2500 {
		t.Errorf("expected total 2500, got %d", order.TotalCents())
	}

	entries, err := cartRepo.ListEntries(ctx, customer)
	if err != nil {
		t.Fatalf("failed to list cart: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty cart after checkout, got %d entries", len(entries))
	}

	// A later price change must not rewrite the snapshot taken at checkout.
	widget.PriceCents = 9999
	if err := catalogRepo.UpdateProduct(ctx, widget); err != nil {
		t.Fatalf("failed to update price: %v", err)
	}

	order, err = ordersRepo.GetByID(ctx, customer, resp.OrderID)
	if err != nil {
		t.Fatalf("failed to re-fetch order: %v", err)
	}
	for _, item := range order.Items {
		if item.ProductID == widget.ID && item.UnitPriceCents != 1000 {
			t.Errorf("expected snapshot price 1000, got %d", item.UnitPriceCents)
		}
	}

	rec = checkout()
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty cart, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Cart is empty") {
		t.Errorf("unexpected error body: %s", rec.Body.String())
	}
}

func TestOrderVisibilityScoping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	usersRepo := accounts.NewUserRepository(db)
	seller := registerPrincipal(ctx, t, usersRepo, "seller@example.com", domain.RoleSeller)
	otherSeller := registerPrincipal(ctx, t, usersRepo, "other-seller@example.com", domain.RoleSeller)
	alice := registerPrincipal(ctx, t, usersRepo, "alice@example.com", domain.RoleCustomer)
	bob := registerPrincipal(ctx, t, usersRepo, "bob@example.com", domain.RoleCustomer)

	catalogRepo := catalog.NewRepository(db)
	widget := createProduct(ctx, t, catalogRepo, seller, "Widget", 1000)

	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Upsert(ctx, alice, widget.ID, 1); err != nil {
		t.Fatalf("failed to fill cart: %v", err)
	}

	ordersRepo := orders.NewOrderRepository(db)
	order, err := ordersRepo.Checkout(ctx, alice)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	t.Run("another customer cannot see the order", func(t *testing.T) {
		if _, err := ordersRepo.GetByID(ctx, bob, order.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("selling seller sees the order", func(t *testing.T) {
		visible, err := ordersRepo.List(ctx, seller)
		if err != nil {
			t.Fatalf("failed to list orders: %v", err)
		}
		if len(visible) != 1 || visible[0].ID != order.ID {
			t.Fatalf("expected order %s visible to seller, got %+v", order.ID, visible)
		}
	})

	t.Run("uninvolved seller sees nothing", func(t *testing.T) {
		visible, err := ordersRepo.List(ctx, otherSeller)
		if err != nil {
			t.Fatalf("failed to list orders: %v", err)
		}
		if len(visible) != 0 {
			t.Fatalf("expected no orders for uninvolved seller, got %d", len(visible))
		}
	})

	t.Run("only the owning customer updates status", func(t *testing.T) {
		if _, err := ordersRepo.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for seller status update, got %v", err)
		}

		updated, err := ordersRepo.UpdateStatus(ctx, alice, order.ID, domain.OrderStatusCancelled)
		if err != nil {
			t.Fatalf("owner status update failed: %v", err)
		}
		if updated.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected status cancelled, got %s", updated.Status)
		}
	})
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestOrderPlacedEventDeliversConfirmationEmail(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	emailCap := &emailCapture{}
	emailServer := httptest.NewServer(http.HandlerFunc(emailCap.handler))
	defer emailServer.Close()

	producer := messaging.NewProducer(brokers, "order.placed")
	defer func() { _ = producer.Close() }()

	event := domain.OrderPlacedEvent{
		OrderID:    "order-1",
		CustomerID: "c1",
		Email:      "alice@example.com",
		Items: []domain.OrderItem{
			{ProductID: "widget", Quantity: 2, UnitPriceCents: 1000},
		},
		Timestamp: time.Now().UTC(),
	}
	if err := producer.Publish(ctx, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	handler := worker.NewNotificationHandler(emailServer.URL, &http.Client{Timeout: 10 * time.Second}, discardLogger())
	consumer := messaging.NewConsumer(brokers, "order.placed", "notification-worker")
	defer func() { _ = consumer.Close() }()

	consumeCtx, consumeCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			err := handler.Handle(ctx, payload)
			consumeCancel()
			return err
		})
	}()

	select {
	case <-done:
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for the event to be consumed")
	}

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if emails[0]["to"] != "alice@example.com" {
		t.Errorf("unexpected recipient: %s", emails[0]["to"])
	}
	if !strings.Contains(emails[0]["subject"], "order-1") {
		t.Errorf("expected order id in subject, got %q", emails[0]["subject"])
	}
}
