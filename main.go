package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domainOrder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway/myfatoorah"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway/paymob"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging/amqp"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging/kafka"
	infraObs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
)

// relayedEvents are forwarded to the external broker when one is configured.
var relayedEvents = []string{
	domainOrder.OrderPlacedEvent{}.EventName(),
	domainOrder.OrderCanceledEvent{}.EventName(),
	domainPayment.CompletedEvent{}.EventName(),
	domainPayment.FailedEvent{}.EventName(),
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	tel, err := infraObs.Setup(infraObs.Options{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		LogLevel:    cfg.LogLevel,
		LogFile:     cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tel.Sync() }()
	baseLogger := tel.Logger()
	systemLogger := baseLogger.With(observability.F("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := newGatewayRegistry(cfg, tel)
	ids := id.NewUUIDGenerator()
	pricing := appOrder.Pricing{TaxRate: cfg.TaxRate, Currency: cfg.DefaultCurrency}

	// In-memory event bus: committed domain events fan out to the broker relay
	bus := outbox.NewBus(tel)
	relay, err := newRelay(cfg.Broker, tel)
	if err != nil {
		return err
	}
	if relay != nil {
		relay.Attach(bus, relayedEvents...)
		defer func() { _ = relay.Close() }()
	}
	bus.Start(ctx)

	placeOrder := appOrder.NewPlaceOrderUseCase(st, registry, ids, bus, pricing, tel)
	cancelOrder := appOrder.NewCancelOrderUseCase(st, bus, tel)
	reconcile := appPayment.NewReconcileUseCase(st, ids, bus, tel)

	var expiry *workerpresentation.ExpiryWorker
	if cfg.PendingOrderTTL > 0 {
		expire := appOrder.NewExpirePendingOrdersUseCase(st, cancelOrder, cfg.PendingOrderTTL, tel)
		expiry = workerpresentation.NewExpiryWorker(expire, cfg.ExpiryInterval, baseLogger)
		expiry.Start(ctx)
	}

	handler := httppresentation.NewHandler(httppresentation.UseCases{
		PlaceOrder:         placeOrder,
		RequestInvoice:     appOrder.NewRequestInvoiceUseCase(st, registry, ids, pricing, tel),
		CancelOrder:        cancelOrder,
		GetOrder:           appOrder.NewGetOrderUseCase(st, tel),
		HandleNotification: appPayment.NewHandleNotificationUseCase(registry, reconcile, tel),
	}, tel.MetricsHandler(), tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store", cfg.Store),
			observability.F("gateways", registry.Names()),
			observability.F("broker", cfg.Broker.Kind),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	if expiry != nil {
		expiry.Stop()
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		systemLogger.Warn("event_bus_drain_incomplete", observability.F("error", err))
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Manager, func(), error) {
	switch cfg.Store {
	case "postgres":
		db, err := postgres.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(db), func() { _ = db.Close() }, nil
	default:
		st := memory.NewStore()
		if err := seedDemoCatalog(st); err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

func newGatewayRegistry(cfg config.Config, tel observability.Observability) *domainPayment.Registry {
	gw := cfg.Gateways
	return domainPayment.NewRegistry(gw.Default,
		myfatoorah.New(myfatoorah.Config{
			BaseURL:         gw.MyFatoorah.BaseURL,
			APIKey:          gw.MyFatoorah.APIKey,
			WebhookSecret:   gw.MyFatoorah.WebhookSecret,
			CustomerCountry: gw.MyFatoorah.CustomerCountry,
			CallbackURL: func(orderID string) string {
				return gw.CallbackURL(myfatoorah.Name, orderID)
			},
		}, gateway.NewClient(myfatoorah.Name, gw.Timeout, tel)),
		paymob.New(paymob.Config{
			BaseURL:       gw.PayMob.BaseURL,
			APIKey:        gw.PayMob.APIKey,
			IntegrationID: gw.PayMob.IntegrationID,
			IframeID:      gw.PayMob.IframeID,
			HMACSecret:    gw.PayMob.HMACSecret,
		}, gateway.NewClient(paymob.Name, gw.Timeout, tel)),
	)
}

func newRelay(cfg config.BrokerConfig, tel observability.Observability) (*messaging.Relay, error) {
	switch cfg.Kind {
	case "kafka":
		return messaging.NewRelay(kafka.NewSink(cfg.KafkaBrokers), cfg.TopicPrefix, tel), nil
	case "amqp":
		sink, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		// the exchange already namespaces routing keys
		return messaging.NewRelay(sink, "", tel), nil
	default:
		return nil, nil
	}
}

// seedDemoCatalog gives the in-memory store something to sell.
func seedDemoCatalog(st *memory.Store) error {
	offer := decimal.RequireFromString("8.50")
	products := []catalog.Product{
		{ID: "mug", Name: "Ceramic mug", Price: decimal.RequireFromString("10.00"), InventoryCount: 100, Active: true},
		{ID: "coaster", Name: "Cork coaster", Price: decimal.RequireFromString("5.00"), InventoryCount: 200, Active: true},
		{ID: "teapot", Name: "Glass teapot", Price: decimal.RequireFromString("12.00"), OfferPrice: &offer, InventoryCount: 20, Active: true},
	}
	for _, p := range products {
		if err := st.PutProduct(p); err != nil {
			return err
		}
	}
	st.PutAddress(catalog.Address{
		ID:         "addr-demo",
		UserID:     "customer-demo",
		Line:       "12 Tahrir Square",
		PostalCode: "11511",
		City:       catalog.City{ID: "cairo", Name: "Cairo", ShipmentFee: decimal.RequireFromString("20.00"), Active: true},
	})
	st.PutCoupon(catalog.Coupon{
		Code:      "WELCOME10",
		Discount:  decimal.NewFromInt(10),
		ValidFrom: time.Now().Add(-24 * time.Hour),
		ValidTo:   time.Now().AddDate(1, 0, 0),
		Active:    true,
	})
	return nil
}
