// Package storage maps hub state to the sqlite snapshot database.
//
// The registries own all in-memory state and call into the store on
// every mutation; the store holds no caches of its own. Runtime-only
// fields such as online status and armed delay clocks are not
// persisted, so loaded records come back cold.
package storage
