// Package dbpool states the database connection pool seam the HTTP layer
// is constructed with. No driver is wired here — see DESIGN.md — callers
// supply any *sql.DB, which already satisfies Pool.
package dbpool

import "context"

// Pool is the minimal lifecycle surface the HTTP layer depends on. A
// *sql.DB satisfies this directly.
type Pool interface {
	PingContext(ctx context.Context) error
	Close() error
}
