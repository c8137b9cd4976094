// Package store opens the board.Store backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dohr-michael/taskboard/internal/board"
	"github.com/dohr-michael/taskboard/internal/config"
	"github.com/dohr-michael/taskboard/internal/store/mongostore"
	"github.com/dohr-michael/taskboard/internal/store/sqlitestore"
)

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (board.Store, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		s, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		slog.Debug("store opened", "driver", config.DriverSQLite, "path", cfg.SQLite.Path)
		return s, nil

	case config.DriverMongo:
		s, err := mongostore.Open(ctx, mongostore.Options{
			URI:          cfg.Mongo.URI,
			Database:     cfg.Mongo.Database,
			Collection:   cfg.Mongo.Collection,
			Transactions: cfg.Mongo.Transactions,
			Timeout:      cfg.Mongo.Timeout.Duration(),
		})
		if err != nil {
			return nil, err
		}
		slog.Debug("store opened", "driver", config.DriverMongo,
			"database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
