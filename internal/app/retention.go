package app

import (
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/locks"
	"github.com/quiltdata/benchling-webhook-sub011/internal/retention"
)

func (app *App) initializeRetention() error {
	if !app.Config.RetentionEnabled {
		app.Logger.Info("Delivery retention: Disabled")
		return nil
	}

	if app.RedisClient != nil {
		lockManager, err := locks.NewManager(app.RedisClient)
		if err != nil {
			app.Logger.Warn("Lock manager initialization failed, sweeps run unsynchronized",
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			app.LockManager = lockManager
		}
	}

	sweeper, err := retention.New(app.Storage, app.LockManager, &retention.Config{
		Schedule: app.Config.RetentionSchedule,
		MaxAge:   app.Config.RetentionMaxAge,
	}, app.Logger)
	if err != nil {
		return err
	}

	app.Sweeper = sweeper
	app.Sweeper.Start()
	app.Logger.Info("Delivery retention: Enabled",
		logging.Field{Key: "schedule", Value: app.Config.RetentionSchedule},
		logging.Field{Key: "max_age", Value: app.Config.RetentionMaxAge},
	)

	return nil
}
