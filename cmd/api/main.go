package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/pos-api/internal/application/outbox"
	"github.com/jhoicas/pos-api/internal/application/sales"
	"github.com/jhoicas/pos-api/internal/application/usecase"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
	"github.com/jhoicas/pos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pos-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/pos-api/internal/interfaces/http"
	"github.com/jhoicas/pos-api/pkg/config"
	"github.com/jhoicas/pos-api/pkg/kafka"
	"github.com/jhoicas/pos-api/pkg/logger"
	"github.com/jhoicas/pos-api/pkg/metrics"
)

const swaggerFile = "./docs/swagger.json"

// stores repos y runner según STORE_DRIVER.
type stores struct {
	txRunner  sales.TxRunner
	products  repository.ProductRepository
	providers repository.ProviderRepository
	sales     repository.SaleRepository
	outbox    repository.OutboxRepository
	ping      func(ctx context.Context) error
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checkoutUC := sales.NewCheckoutUseCase(st.txRunner, st.sales, sales.CheckoutConfig{
		MaxRetries:     cfg.Checkout.MaxRetries,
		RetryBaseDelay: cfg.Checkout.RetryBaseDelay,
		Timeout:        cfg.Checkout.Timeout,
	}, log.Component("checkout"), metrics.NewCheckoutMetrics(reg))
	productUC := usecase.NewProductUseCase(st.products)
	providerUC := usecase.NewProviderUseCase(st.providers)

	// Relay del outbox: solo con brokers configurados; sin ellos los eventos quedan pendientes en la tabla.
	kafkaClient := kafka.NewClient(cfg.Kafka.Brokers)
	relayDone := make(chan struct{})
	if writer, err := kafkaClient.NewWriter(); err == nil {
		defer writer.Close()
		relay := outbox.NewRelay(st.outbox, kafka.NewPublisher(writer), outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			Topics:       map[string]string{entity.TopicSaleCompleted: cfg.Kafka.SalesTopic},
		}, log.Component("outbox"), metrics.NewOutboxMetrics(reg))
		go func() {
			defer close(relayDone)
			_ = relay.Run(ctx)
		}()
		log.Info().Strs("brokers", kafkaClient.Brokers).Msg("relay del outbox activo")
	} else {
		close(relayDone)
		log.Warn().Msg("KAFKA_BROKERS vacío: relay del outbox deshabilitado")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs (requiere generar docs/swagger.json)
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "POS API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		AppName:    cfg.App.Name,
		Checkout:   checkoutUC,
		ProductUC:  productUC,
		ProviderUC: providerUC,
		Log:        log.Component("http"),
		Metrics:    metrics.NewServerMetrics(reg),
		Gatherer:   reg,
		Ping:       st.ping,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("relay del outbox no terminó a tiempo")
	}

	log.Info().Msg("aplicación detenida")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		store := memory.NewStore(memory.WithLockTimeout(cfg.Checkout.LockTimeout))
		return &stores{
			txRunner:  store,
			products:  store,
			providers: store.ProviderStore(),
			sales:     store.SaleStore(),
			outbox:    store,
			close:     func() {},
		}, nil
	case config.StorePostgres:
		iso, err := postgres.ParseIsolation(cfg.Checkout.Isolation)
		if err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return &stores{
			txRunner: postgres.NewTxRunner(pool, postgres.TxConfig{
				Isolation:   iso,
				LockTimeout: cfg.Checkout.LockTimeout,
			}),
			products:  postgres.NewProductRepository(pool),
			providers: postgres.NewProviderRepository(pool),
			sales:     postgres.NewSaleRepository(pool),
			outbox:    postgres.NewOutboxRepository(pool),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil
	}
	return nil, errors.New("STORE_DRIVER no soportado: " + cfg.Store.Driver)
}
