package main

import (
	"context"
	"fmt"

	appcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/application/customer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/peer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	rediscache "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/config"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Service identities used for consumer groups and log tagging.
var serviceIDs = map[string]string{
	config.ServiceOrder:        "order-service",
	config.ServicePayment:      "payment-service",
	config.ServiceStore:        "store-service",
	config.ServiceNotification: "notification-service",
}

type stores struct {
	orders    domorder.Repository
	bills     dompayment.Repository
	customers domcustomer.Repository
	products  domcatalog.Repository
	outbox    domoutbox.Store
}

type lifecycle interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
}

type app struct {
	services []string
	stores   *stores
	httpDeps httppresentation.Deps
	buses    []lifecycle
	seed     []domoutbox.Event
	pub      domoutbox.Publisher
	closers  []func() error
	log      observability.Logger
}

func build(ctx context.Context, cfg config.Config, tel observability.Observability) (*app, error) {
	a := &app{log: tel.Logger().With(observability.F("component", "bootstrap"))}

	st, err := a.openStores(ctx, cfg, tel)
	if err != nil {
		a.close()
		return nil, err
	}
	a.stores = st
	subscriberFor := a.openBus(cfg, tel)
	// Appended after the buses so it stops first and its final flush can still publish.
	a.buses = append(a.buses, outbox.NewRelay(st.outbox, a.pub, tel, outbox.WithPollInterval(cfg.OutboxPollInterval)))

	ids := id.NewUUIDGenerator()
	var gw dompayment.Gateway = gateway.NewSandbox()
	if cfg.GatewayBaseURL != "" && cfg.GatewayAPIKey != "" {
		gw = gateway.NewAsaas(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.PeerTimeout)
	} else {
		a.log.Warn("gateway_sandbox_enabled")
	}

	var (
		getProduct *inventory.GetProductUseCase
		charge     *apppayment.CreateChargeUseCase
	)

	if cfg.Enabled(config.ServiceStore) {
		a.services = append(a.services, config.ServiceStore)
		getProduct = inventory.NewGetProductUseCase(st.products, tel)
		inventory.NewWorker(subscriberFor(config.ServiceStore), inventory.NewDecrementStockUseCase(st.products, tel)).Start()
		a.httpDeps.Product = getProduct

		if cfg.SeedCatalog {
			if err := seedCatalog(ctx, st.products); err != nil {
				a.close()
				return nil, err
			}
		}
	}

	if cfg.Enabled(config.ServicePayment) {
		a.services = append(a.services, config.ServicePayment)
		sub := subscriberFor(config.ServicePayment)
		charge = apppayment.NewCreateChargeUseCase(st.bills, st.customers, gw, ids, tel)
		apppayment.NewWorker(sub, apppayment.NewLinkOrderUseCase(st.bills, tel)).Start()
		appcustomer.NewWorker(sub, appcustomer.NewProvisionCustomerUseCase(st.customers, gw, ids, tel)).Start()
		a.httpDeps.Charge = charge
		a.httpDeps.Webhook = apppayment.NewProcessWebhookUseCase(st.bills, tel)

		if cfg.SeedCatalog {
			a.seed = append(a.seed, demoCustomer())
		}
	}

	if cfg.Enabled(config.ServiceNotification) {
		a.services = append(a.services, config.ServiceNotification)
		notifier := notification.LogNotifier{Log: tel.Logger().With(observability.F("component", "notifier"))}
		notification.NewWorker(subscriberFor(config.ServiceNotification), notification.NewDispatchUseCase(notifier, tel)).Start()
	}

	if cfg.Enabled(config.ServiceOrder) {
		a.services = append(a.services, config.ServiceOrder)

		var catalog apporder.Catalog = peer.NewHTTPCatalog(cfg.StoreURL, cfg.PeerTimeout)
		if getProduct != nil {
			catalog = peer.NewLocalCatalog(getProduct)
		}
		var payments apporder.Payments = peer.NewHTTPPayments(cfg.PaymentURL, cfg.PaymentAPIKey, cfg.PeerTimeout)
		if charge != nil {
			payments = peer.NewLocalPayments(charge)
		}

		a.httpDeps.Checkout = apporder.NewCheckoutUseCase(st.orders, catalog, payments, ids, tel)
		apporder.NewWorker(subscriberFor(config.ServiceOrder), apporder.NewReconcilePaymentUseCase(st.orders, tel)).Start()
	}

	return a, nil
}

func (a *app) openStores(ctx context.Context, cfg config.Config, tel observability.Observability) (*stores, error) {
	st := &stores{}
	if cfg.DatabaseURL == "" {
		a.log.Warn("store_in_memory")
		box := memory.NewOutbox()
		st.outbox = box
		st.orders = memory.NewOrderRepository(box)
		st.bills = memory.NewBillRepository(box)
		st.customers = memory.NewCustomerRepository()
		st.products = memory.NewProductRepository()
	} else {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(db); err != nil {
			return nil, err
		}
		st.outbox = postgres.NewOutboxStore(db)
		st.orders = postgres.NewOrderRepository(db)
		st.bills = postgres.NewBillRepository(db)
		st.customers = postgres.NewCustomerRepository(db)
		st.products = postgres.NewProductRepository(db)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		st.products = rediscache.NewProductCache(st.products, client, cfg.ProductTTL, tel.Logger())
	}
	return st, nil
}

// openBus sets the shared publisher and returns the subscriber each service consumes from.
// With Kafka every service gets its own consumer group; in memory all share one bus.
func (a *app) openBus(cfg config.Config, tel observability.Observability) func(service string) domoutbox.Subscriber {
	if cfg.Bus != config.BusKafka {
		bus := outbox.NewBus(tel)
		a.pub = bus
		a.buses = append(a.buses, bus)
		return func(service string) domoutbox.Subscriber {
			return workerpresentation.NewSubscriber(bus, serviceIDs[service], tel)
		}
	}

	publisher := kafka.NewBus(kafka.Config{Brokers: cfg.KafkaBrokers, GroupID: cfg.KafkaGroupPrefix + "-publisher"}, tel)
	a.pub = publisher
	a.buses = append(a.buses, publisher)
	consumers := map[string]*kafka.Bus{}
	return func(service string) domoutbox.Subscriber {
		bus, ok := consumers[service]
		if !ok {
			bus = kafka.NewBus(kafka.Config{
				Brokers: cfg.KafkaBrokers,
				GroupID: fmt.Sprintf("%s-%s", cfg.KafkaGroupPrefix, serviceIDs[service]),
			}, tel)
			consumers[service] = bus
			a.buses = append(a.buses, bus)
		}
		return workerpresentation.NewSubscriber(bus, serviceIDs[service], tel)
	}
}

// start runs the buses once every worker has subscribed, then publishes the seed events.
func (a *app) start(ctx context.Context) {
	for _, b := range a.buses {
		b.Start(ctx)
	}
	for _, e := range a.seed {
		if err := a.pub.Publish(ctx, e); err != nil {
			a.log.Warn("seed_event_publish_failed", observability.F("event", e.EventName()), observability.F("error", err))
		}
	}
}

func (a *app) stop(ctx context.Context) {
	for i := len(a.buses) - 1; i >= 0; i-- {
		a.buses[i].Stop(ctx)
	}
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("resource_close_failed", observability.F("error", err))
		}
	}
	a.closers = nil
}

func seedCatalog(ctx context.Context, repo domcatalog.Repository) error {
	for _, s := range []struct {
		id       int64
		title    string
		price    string
		quantity int
	}{
		{10, "Coffee mug", "5.00", 5},
		{11, "Notebook", "3.50", 1},
	} {
		if _, err := repo.Get(ctx, s.id); err == nil {
			continue
		}
		p, err := domcatalog.NewProduct(s.id, s.title, "", nil, decimal.RequireFromString(s.price), s.quantity)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("seed product %d: %w", s.id, err)
		}
	}
	return nil
}

func demoCustomer() domcustomer.CustomerCreationRequestedEvent {
	userID := int64(1)
	return domcustomer.CustomerCreationRequestedEvent{
		UserID:   &userID,
		Name:     "Demo",
		LastName: "Customer",
		Email:    "demo@minishop.local",
	}
}
