package main

import (
	"context"
	"database/sql"
	"time"
)

// checkSchema checks that the tables the registrar writes to exist.
// An unmigrated database otherwise fails on the first checkout.
func checkSchema(db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var n int
	return db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders o LEFT JOIN order_registration_attempts a ON a.order_id = o.id WHERE 1 = 0",
	).Scan(&n)
}
