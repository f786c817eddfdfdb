package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/acme/storefront/internal/accounts"
	"github.com/acme/storefront/internal/cart"
	"github.com/acme/storefront/internal/catalog"
	"github.com/acme/storefront/internal/httpx"
	"github.com/acme/storefront/internal/messaging"
	"github.com/acme/storefront/internal/orders"
	"github.com/acme/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := telemetry.NewLogger()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront-api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Error("REDIS_ADDR environment variable is required")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, "order.placed")
		defer func() { _ = producer.Close() }()
	}

	sessions := accounts.NewSessionStore(redisClient)
	auth := httpx.NewAuthenticator(sessions, logger)

	accountsHandler := accounts.NewHandler(accounts.NewUserRepository(db), sessions, logger)
	catalogHandler := catalog.NewHandler(catalog.NewRepository(db), logger)
	cartHandler := cart.NewHandler(cart.NewRepository(db), logger)
	ordersHandler := orders.NewHandler(orders.NewOrderRepository(db), producer, logger)

	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(h)
	}
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(auth.Require(h))
	}

	mux.HandleFunc("POST /auth/register/customer", public(accountsHandler.HandleRegisterCustomer))
	mux.HandleFunc("POST /auth/register/seller", public(accountsHandler.HandleRegisterSeller))
	mux.HandleFunc("POST /auth/login", public(accountsHandler.HandleLogin))
	mux.HandleFunc("POST /auth/logout", protected(accountsHandler.HandleLogout))
	mux.HandleFunc("DELETE /auth/account", protected(accountsHandler.HandleDeleteAccount))
	mux.HandleFunc("GET /profile", protected(accountsHandler.HandleGetProfile))
	mux.HandleFunc("PUT /profile", protected(accountsHandler.HandleUpdateProfile))

	// Catalog reads are public; writes require a seller principal.
	mux.HandleFunc("GET /categories", public(catalogHandler.HandleListCategories))
	mux.HandleFunc("POST /categories", protected(catalogHandler.HandleCreateCategory))
	mux.HandleFunc("GET /categories/{id}", public(catalogHandler.HandleGetCategory))
	mux.HandleFunc("PUT /categories/{id}", protected(catalogHandler.HandleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", protected(catalogHandler.HandleDeleteCategory))

	mux.HandleFunc("GET /products", public(catalogHandler.HandleListProducts))
	mux.HandleFunc("POST /products", protected(catalogHandler.HandleCreateProduct))
	mux.HandleFunc("GET /products/mine", protected(catalogHandler.HandleListOwnProducts))
	mux.HandleFunc("GET /products/{id}", public(catalogHandler.HandleGetProduct))
	mux.HandleFunc("PUT /products/{id}", protected(catalogHandler.HandleUpdateProduct))
	mux.HandleFunc("DELETE /products/{id}", protected(catalogHandler.HandleDeleteProduct))

	mux.HandleFunc("GET /cart", protected(cartHandler.HandleListCart))
	mux.HandleFunc("POST /cart", protected(cartHandler.HandleAddToCart))
	mux.HandleFunc("GET /cart/{id}", protected(cartHandler.HandleGetCartEntry))
	mux.HandleFunc("PUT /cart/{id}", protected(cartHandler.HandleUpdateCartEntry))
	mux.HandleFunc("DELETE /cart/{id}", protected(cartHandler.HandleDeleteCartEntry))

	mux.HandleFunc("GET /wishlist", protected(cartHandler.HandleListWishlist))
	mux.HandleFunc("POST /wishlist", protected(cartHandler.HandleAddToWishlist))
	mux.HandleFunc("GET /wishlist/{id}", protected(cartHandler.HandleGetWishlistEntry))
	mux.HandleFunc("DELETE /wishlist/{id}", protected(cartHandler.HandleDeleteWishlistEntry))

	mux.HandleFunc("GET /orders", protected(ordersHandler.HandleList))
	mux.HandleFunc("POST /orders", protected(ordersHandler.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", protected(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", protected(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("DELETE /orders/{id}", protected(ordersHandler.HandleDelete))
	mux.HandleFunc("POST /checkout", protected(ordersHandler.HandleCheckout))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "storefront-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storefront api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
