package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/api"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/internal/payment/epay"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

// App holds the opened resources and the services built on them.
type App struct {
	Config   *config.Config
	Store    database.Store
	Redis    *redis.Client
	Services api.Services
}

// New opens the store, the optional Redis cache and the optional payment
// gateway, and wires the services together.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Store: store}

	a.Redis, err = database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var driver payment.Driver
	if cfg.Epay.Enabled() {
		d, err := epay.New(cfg.Epay, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configure epay: %w", err)
		}
		driver = d
	} else {
		logger.Log.Warn("Payment gateway not configured; recharges need manual review")
	}

	ledger := services.NewLedgerService(store, cfg.AuthSecret)
	recharge := services.NewRechargeService(store, ledger, driver, cfg.PublicBaseURL)
	a.Services = api.Services{
		Auth: services.NewAuthService(
			store,
			services.NewSessionCache(a.Redis),
			services.NewMailer(cfg.SMTP),
			cfg.AuthSecret,
			cfg.AdminEmails,
		),
		Ledger:     ledger,
		Recharge:   recharge,
		Notify:     services.NewNotifyService(driver, recharge),
		Generation: services.NewGenerationService(ledger, services.NewNanoClient(cfg.Nano, nil)),
	}

	logger.Log.Info("Application initialized",
		zap.String("store", cfg.StoreDriver),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("epay", driver != nil),
	)
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
