// Package database provides SQLite connectivity for HomeWatt Core.
//
// The database holds exactly one concern: persisted user settings
// (power thresholds, tariff prices, VAT). Schema creation lives with
// the settings store; this package owns connection lifecycle, pragmas
// (WAL, busy timeout, foreign keys) and health checking.
//
// SQLite is opened with a single-writer connection pool, which matches
// its locking model and this application's write rate (settings saves
// are rare, user-driven events).
package database
