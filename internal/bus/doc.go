// Package bus publishes hub notifications to an MQTT broker.
//
// The relay is a one-way mirror: events, status changes and device
// arrivals go out as JSON, nothing is consumed. Delivery is best
// effort; a slow or absent broker never backpressures the hub.
package bus
