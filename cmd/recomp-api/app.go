package main

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/cache"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/config"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/database"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/identifier"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/users"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// application holds the wired services shared by the server and the CLI commands.
type application struct {
	config       config.AppConfig
	logger       *zap.Logger
	measurements *measurements.Store
	plans        *plans.Store
	auditLog     *adaptive.AuditLog
	adaptive     *adaptive.Service
	profiles     *users.Service
	cache        cache.Cache
	closers      []func() error
}

func newApplication(ctx context.Context) (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}
	app := &application{config: appConfig, logger: logger}
	app.closers = append(app.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, sqlDB.Close)

	ids := identifier.NewUUIDProvider()
	if app.measurements, err = measurements.NewStore(measurements.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	}); err != nil {
		app.Close()
		return nil, err
	}
	if app.plans, err = plans.NewStore(plans.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	}); err != nil {
		app.Close()
		return nil, err
	}
	if app.auditLog, err = adaptive.NewAuditLog(adaptive.AuditLogConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	}); err != nil {
		app.Close()
		return nil, err
	}
	if app.adaptive, err = adaptive.NewService(adaptive.ServiceConfig{
		Measurements: app.measurements,
		Plans:        app.plans,
		Audit:        app.auditLog,
		Clock:        time.Now,
		Logger:       logger,
	}); err != nil {
		app.Close()
		return nil, err
	}
	if app.profiles, err = users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	}); err != nil {
		app.Close()
		return nil, err
	}

	if appConfig.RedisURL == "" {
		app.cache = cache.NewMemoryCache(time.Now)
	} else {
		redisCache, err := cache.NewRedisCache(ctx, appConfig.RedisURL, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.cache = redisCache
		app.closers = append(app.closers, redisCache.Close)
	}

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for index := len(a.closers) - 1; index >= 0; index-- {
		if err := a.closers[index](); err != nil && a.logger != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	a.closers = nil
}
