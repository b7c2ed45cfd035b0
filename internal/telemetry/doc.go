// Package telemetry streams device history into InfluxDB.
//
// Status changes, events and arrivals become time-series points; the
// hub itself never reads them back. Writes are batched and
// asynchronous, so telemetry failure degrades to log noise.
package telemetry
