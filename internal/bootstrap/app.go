package bootstrap

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	infraGateway "storefront/internal/infra/gateway"
	"storefront/internal/infra/lock"
	infraNotify "storefront/internal/infra/notify"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Config    config.Config
	DB        *gorm.DB
	Echo      *echo.Echo
	Reconcile *usecase.ReconcileUsecase
}

// InitWithConfig は依存を組み立てる。cleanupは逆順で閉じる。
func InitWithConfig(cfg config.Config) (*App, func(), error) {
	log := logging.New("bootstrap")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init database
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fail(fmt.Errorf("connect db: %w", err))
	}
	closers = append(closers, func() { _ = db.Close(gdb) })

	gw, err := NewGateway(cfg)
	if err != nil {
		return fail(err)
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLocker)

	sink, closeSink, err := NewSink(cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeSink)

	dispatcher := notify.NewDispatcher(sink, notify.Config{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		Timeout:     cfg.NotifyTimeout,
		AdminTarget: cfg.AdminWhatsApp,
	})
	//送信待ちを流してから閉じる
	closers = append(closers, dispatcher.Close)

	orders := infraRepo.NewOrderGormRepository(gdb)
	payments := infraRepo.NewPaymentGormRepository(gdb)
	products := infraRepo.NewProductGormRepository(gdb)
	auditLogs := infraRepo.NewAuditLogGormRepository(gdb)
	tx := infraRepo.NewTxManagerGorm(gdb)

	reconcileUC := usecase.NewReconcileUsecase(tx, orders, payments, gw, dispatcher, time.Now)
	checkoutUC := usecase.NewCheckoutUsecase(orders, payments, products, gw, locker, dispatcher, uuid.NewString, time.Now)
	orderUC := usecase.NewOrderUsecase(orders, payments)
	productUC := usecase.NewProductUsecase(products)
	adminAuthUC := usecase.NewAdminAuthUsecase(cfg, time.Now)
	adminOrderUC := usecase.NewAdminOrderUsecase(orders, payments, auditLogs, reconcileUC)

	e := server.New(server.Handlers{
		Products:    handler.NewProductHandler(productUC),
		Checkout:    handler.NewCheckoutHandler(checkoutUC, orderUC),
		Payments:    handler.NewPaymentHandler(reconcileUC, gw.Name()),
		AdminAuth:   handler.NewAdminAuthHandler(adminAuthUC),
		AdminOrders: handler.NewAdminOrderHandler(adminOrderUC),
	}, adminAuthUC, func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	log.Info("app initialized", "provider", gw.Name(), "notify_sink", cfg.NotifySink, "redis_lock", cfg.RedisAddr != "")
	return &App{Config: cfg, DB: gdb, Echo: e, Reconcile: reconcileUC}, cleanup, nil
}

// 設定で選ばれたプロバイダ
func NewGateway(cfg config.Config) (gateway.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderMidtrans:
		return infraGateway.NewMidtrans(infraGateway.MidtransConfig{
			ServerKey: cfg.MidtransServerKey,
			SnapURL:   cfg.MidtransSnapBaseURL(),
			APIURL:    cfg.MidtransAPIBaseURL(),
			BaseURL:   cfg.BaseURL,
			Expiry:    cfg.InvoiceDuration,
			Timeout:   cfg.ProviderTimeout,
		}), nil
	case config.ProviderXendit:
		return infraGateway.NewXendit(infraGateway.XenditConfig{
			SecretKey:     cfg.XenditSecretKey,
			CallbackToken: cfg.XenditCallbackToken,
			APIURL:        cfg.XenditAPIURL,
			BaseURL:       cfg.BaseURL,
			Duration:      cfg.InvoiceDuration,
			Timeout:       cfg.ProviderTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

// REDIS_ADDRがあれば複数インスタンス間で効くロック
func newLocker(cfg config.Config) (usecase.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemoryLocker(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return lock.NewRedisLocker(rdb, cfg.CheckoutLockTTL), func() { _ = rdb.Close() }, nil
}

func NewSink(cfg config.Config) (notify.Sink, func(), error) {
	switch cfg.NotifySink {
	case config.SinkFonnte:
		return infraNotify.NewFonnteSink(cfg.FonnteURL, cfg.FonnteToken, cfg.NotifyTimeout), func() {}, nil
	case config.SinkRabbitMQ:
		s, err := infraNotify.NewRabbitSink(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQRoutingKey)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return infraNotify.NewLogSink(), func() {}, nil
	}
}
