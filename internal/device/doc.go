// Package device implements the hub's device registry, driver layer and
// per-device automation.
//
// The Registry is the authoritative record of devices: an online queue
// of reachable devices and an offline queue of persisted records waiting
// for their hardware to return. Drivers report arrivals and departures
// through the Core callback surface; clients and scenes operate on
// devices through the registry's id-addressed operations.
//
// Automation lives on the devices themselves. Each device carries fixed
// slot arrays of timers (clock-driven), delays (event-armed, fire after
// a countdown) and linkages (event-driven, fire immediately on another
// device). The Tick method advances timers and delays at one-second
// resolution; driver events feed delays and linkages via ReportEvent.
//
// All driver-touching work funnels through the Dispatcher, a bounded
// single-consumer queue, so a slow device never stalls the network
// layer or the automation pipeline.
package device
