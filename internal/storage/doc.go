// Package storage persists users, places, actions, habits and the periodic
// job registry. Queries are built with squirrel and executed through sqlx so
// the same code serves SQLite (modernc) and PostgreSQL (lib/pq).
//
// Transactions travel in the context: code running inside WithTx that calls
// Store.Q(ctx) joins the open transaction.
package storage
