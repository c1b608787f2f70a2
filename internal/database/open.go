package database

import (
	"fmt"

	"github.com/syy-ex/hair-makeover/config"
)

// Open returns the store backend selected by cfg.StoreDriver.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "", "file":
		return NewFileStore(cfg.DataDir)
	case "sqlite":
		return NewSQLStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.StoreDriver)
	}
}
