// Package session provides the server-side session model and its stores.
//
// Stores:
//   - MemoryStore, in process, the default
//   - SQLiteStore, a sessions table in a SQLite file
//   - PebbleStore, JSON values in a pebble key-value store
//
// Lookup applies the expiry rule shared by all stores: a session idle for
// longer than the expiry is deleted and reported as missing. Sweeper purges
// expired sessions on a cron schedule for stores implementing Expirer.
//
// Global and Temporary are sentinel sessions that never reach a store.
package session
