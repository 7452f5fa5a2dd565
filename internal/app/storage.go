package app

import (
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"

	// Adapters register themselves with the storage registry.
	_ "github.com/quiltdata/benchling-webhook-sub011/internal/storage/postgres"
	_ "github.com/quiltdata/benchling-webhook-sub011/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	default:
		app.Logger.Info("Database: SQLite",
			logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return err
	}

	// The decorator returns the store unchanged when no key is set.
	store, err = storage.NewEncryptedStorage(store, app.Config.EncryptionKey)
	if err != nil {
		return err
	}
	if app.Config.EncryptionKey != "" {
		app.Logger.Info("Payload encryption: Enabled")
	} else {
		app.Logger.Info("Payload encryption: Disabled (payloads stored in the clear)")
	}

	app.Storage = store
	return nil
}
