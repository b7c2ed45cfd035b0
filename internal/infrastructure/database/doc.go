// Package database provides the SQLite connection and schema management
// for the HSB snapshot store.
//
// The database holds the persistent half of the hub's state: device
// configuration, channels, timers, delays, linkages, and scenes. Runtime
// state (online status, cached status pairs) lives only in memory and is
// rebuilt by probing drivers at startup.
//
// SQLite is opened with WAL mode and a busy timeout, and the connection
// pool is limited to a single connection because SQLite allows only one
// writer.
package database
