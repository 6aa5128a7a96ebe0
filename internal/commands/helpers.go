package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/db"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

// cityFunc resolves the --city flag once flags are parsed.
type cityFunc func() (market.City, error)

var errNoDatabaseURL = errors.New("DATABASE_URL not set")

// openStore connects to DATABASE_URL for the city's schema.
func openStore(ctx context.Context, city market.City) (*store.Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errNoDatabaseURL
	}
	st, err := store.Open(ctx, dsn, city, db.ParseLogLevel(os.Getenv("DB_LOG_LEVEL")))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return st, nil
}

// newAdapter builds the city's source adapter from the environment.
func newAdapter(city market.City) (source.Adapter, error) {
	a, err := source.New(source.LoadFromEnv(), city)
	if err != nil {
		return nil, fmt.Errorf("creating %s adapter: %w", city.Name, err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
