// Package postgres provides a PostgreSQL store.Store implementation
// using pgx/v5.
package postgres
