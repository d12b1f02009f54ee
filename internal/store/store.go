// Package store provides focused, single-concern data access stores for the
// search service's global tables (history, favorites, users).
//
// Each store owns one domain and embeds shared helpers via the Base struct.
// Stores acquire connections from the shared pool per call and never import
// each other.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores. Embed it in each store
// struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
